// Package main provides a one-shot utility for mint-grant key generation.
//
// It emits the asymmetric keypair used to sign and verify mint grants.
package main

import (
	"os"

	"github.com/typemint/typemint/internal/platform/config"
	"github.com/typemint/typemint/internal/tools/grantkey"
)

func main() {
	if err := grantkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate mint grant key: %v", err)
	}
}
