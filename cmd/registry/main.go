// Package main provides the registry admin CLI: collection bootstrap, mints,
// category updates, burns, and journal inspection against a local store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/typemint/typemint/internal/platform/config"
	platformotel "github.com/typemint/typemint/internal/platform/otel"
	"github.com/typemint/typemint/internal/registry/domain"
	"github.com/typemint/typemint/internal/registry/service"
	"github.com/typemint/typemint/internal/registry/storage/sqlite"
)

type registryEnv struct {
	DBPath                string `env:"TYPEMINT_DB_PATH"`
	CollectionName        string `env:"TYPEMINT_COLLECTION_NAME"`
	CollectionDescription string `env:"TYPEMINT_COLLECTION_DESCRIPTION"`
	CollectionURI         string `env:"TYPEMINT_COLLECTION_URI"`
	NumberedPrefix        string `env:"TYPEMINT_NUMBERED_PREFIX"`
	NumberedURISuffix     string `env:"TYPEMINT_NUMBERED_URI_SUFFIX"`
	GrantsEnabled         string `env:"TYPEMINT_MINT_GRANTS_ENABLED"`
}

func loadRegistryEnv() registryEnv {
	var cfg registryEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "registry.db")
	}
	if strings.TrimSpace(cfg.CollectionName) == "" {
		cfg.CollectionName = "personality-archetypes"
	}
	if strings.TrimSpace(cfg.CollectionDescription) == "" {
		cfg.CollectionDescription = "Soulbound personality-type collectibles"
	}
	if strings.TrimSpace(cfg.CollectionURI) == "" {
		cfg.CollectionURI = "https://typemint.dev/collections/personality-archetypes"
	}
	if strings.TrimSpace(cfg.NumberedPrefix) == "" {
		cfg.NumberedPrefix = "Archetype"
	}
	if strings.TrimSpace(cfg.NumberedURISuffix) == "" {
		cfg.NumberedURISuffix = ".png"
	}
	return cfg
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: registry <command> [flags]

commands:
  init                 create the collection (once)
  mint                 mint a named token
  mint-numbered        mint an auto-numbered token
  update               change a token's category (creator only)
  burn                 destroy a token (creator only)
  get                  show a token
  category             show a token's category by derived address
  events               list a token's event journal by derived address`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := platformotel.Setup(ctx, "typemint-registry")
	if err != nil {
		config.Exitf("setup tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()

	envCfg := loadRegistryEnv()

	store, err := sqlite.Open(envCfg.DBPath)
	if err != nil {
		config.Exitf("open registry store: %v", err)
	}
	defer store.Close()

	opts := []service.Option{service.WithEventSinks(service.LogSink{})}
	if strings.EqualFold(strings.TrimSpace(envCfg.GrantsEnabled), "true") {
		grantCfg, err := domain.LoadMintGrantConfigFromEnv(nil)
		if err != nil {
			config.Exitf("load mint grant config: %v", err)
		}
		opts = append(opts, service.WithMintGrants(grantCfg))
	}

	registry := service.NewRegistry(store, service.CollectionConfig{
		Name:              envCfg.CollectionName,
		Description:       envCfg.CollectionDescription,
		URI:               envCfg.CollectionURI,
		NumberedPrefix:    envCfg.NumberedPrefix,
		NumberedURISuffix: envCfg.NumberedURISuffix,
	}, opts...)

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "init":
		runInit(ctx, registry)
	case "mint":
		runMint(ctx, registry, args)
	case "mint-numbered":
		runMintNumbered(ctx, registry, args)
	case "update":
		runUpdate(ctx, registry, args)
	case "burn":
		runBurn(ctx, registry, args)
	case "get":
		runGet(ctx, registry, args)
	case "category":
		runCategory(ctx, registry, args)
	case "events":
		runEvents(ctx, registry, args)
	default:
		usage()
	}
}

func runInit(ctx context.Context, registry *service.Registry) {
	collection, err := registry.InitializeCollection(ctx)
	if err != nil {
		config.Exitf("initialize collection: %v", err)
	}
	fmt.Printf("collection %q initialized\n", collection.Name)
}

func runMint(ctx context.Context, registry *service.Registry, args []string) {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	creator := fs.String("creator", "", "creator identity (required)")
	name := fs.String("name", "", "token display name (required)")
	category := fs.String("category", "", "personality-type code (required)")
	owner := fs.String("owner", "", "recipient identity (required)")
	baseURI := fs.String("base-uri", "", "base URI for the display URI")
	description := fs.String("description", "", "token description")
	grant := fs.String("grant", "", "mint grant token")
	_ = fs.Parse(args)

	token, err := registry.MintToken(ctx, service.MintRequest{
		Grant:       *grant,
		Creator:     *creator,
		Name:        *name,
		Description: *description,
		BaseURI:     *baseURI,
		Owner:       *owner,
		Category:    *category,
	})
	if err != nil {
		config.Exitf("mint token: %v", err)
	}
	printToken(token)
}

func runMintNumbered(ctx context.Context, registry *service.Registry, args []string) {
	fs := flag.NewFlagSet("mint-numbered", flag.ExitOnError)
	creator := fs.String("creator", "", "creator identity (required)")
	category := fs.String("category", "", "personality-type code (required)")
	owner := fs.String("owner", "", "recipient identity (required)")
	baseURI := fs.String("base-uri", "", "base URI for the display URI")
	description := fs.String("description", "", "token description")
	grant := fs.String("grant", "", "mint grant token")
	_ = fs.Parse(args)

	token, err := registry.MintNumberedToken(ctx, service.NumberedMintRequest{
		Grant:       *grant,
		Creator:     *creator,
		Description: *description,
		BaseURI:     *baseURI,
		Owner:       *owner,
		Category:    *category,
	})
	if err != nil {
		config.Exitf("mint numbered token: %v", err)
	}
	printToken(token)
}

func runUpdate(ctx context.Context, registry *service.Registry, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	actor := fs.String("actor", "", "caller identity (required)")
	name := fs.String("name", "", "token display name (required)")
	category := fs.String("category", "", "replacement personality-type code (required)")
	_ = fs.Parse(args)

	token, err := registry.UpdateCategory(ctx, *actor, *name, *category)
	if err != nil {
		config.Exitf("update category: %v", err)
	}
	printToken(token)
}

func runBurn(ctx context.Context, registry *service.Registry, args []string) {
	fs := flag.NewFlagSet("burn", flag.ExitOnError)
	actor := fs.String("actor", "", "caller identity (required)")
	name := fs.String("name", "", "token display name (required)")
	_ = fs.Parse(args)

	if err := registry.BurnToken(ctx, *actor, *name); err != nil {
		config.Exitf("burn token: %v", err)
	}
	fmt.Printf("token %q burned\n", *name)
}

func runGet(ctx context.Context, registry *service.Registry, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	name := fs.String("name", "", "token display name (required)")
	_ = fs.Parse(args)

	token, err := registry.GetToken(ctx, *name)
	if err != nil {
		config.Exitf("get token: %v", err)
	}
	printToken(token)
}

func runCategory(ctx context.Context, registry *service.Registry, args []string) {
	fs := flag.NewFlagSet("category", flag.ExitOnError)
	address := fs.String("address", "", "derived token address (required)")
	_ = fs.Parse(args)

	category, err := registry.GetCategoryByAddress(ctx, *address)
	if err != nil {
		config.Exitf("get category: %v", err)
	}
	fmt.Printf("%s (%s)\n", category, category.Group())
}

func runEvents(ctx context.Context, registry *service.Registry, args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	address := fs.String("address", "", "derived token address (required)")
	_ = fs.Parse(args)

	events, err := registry.ListTokenEvents(ctx, *address)
	if err != nil {
		config.Exitf("list token events: %v", err)
	}
	for _, evt := range events {
		switch {
		case evt.OldCategory != "" && evt.NewCategory != "":
			fmt.Printf("%s  %-24s  actor=%s  %s -> %s\n", evt.Timestamp.Format(time.RFC3339), evt.Type, evt.Actor, evt.OldCategory, evt.NewCategory)
		case evt.NewCategory != "":
			fmt.Printf("%s  %-24s  actor=%s  %s\n", evt.Timestamp.Format(time.RFC3339), evt.Type, evt.Actor, evt.NewCategory)
		default:
			fmt.Printf("%s  %-24s  actor=%s  %s\n", evt.Timestamp.Format(time.RFC3339), evt.Type, evt.Actor, evt.OldCategory)
		}
	}
}

func printToken(token domain.Token) {
	fmt.Printf("name:        %s\n", token.Name)
	fmt.Printf("resource:    %s\n", domain.TokenResourceName(token.Collection, token.Name))
	fmt.Printf("address:     %s\n", token.Address)
	fmt.Printf("category:    %s (%s)\n", token.Category, token.Category.Group())
	fmt.Printf("owner:       %s\n", token.Owner)
	fmt.Printf("creator:     %s\n", token.Creator)
	fmt.Printf("display uri: %s\n", token.DisplayURI)
	fmt.Printf("updated at:  %s\n", token.UpdatedAt.Format(time.RFC3339))
}
