package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/upb/food-enrich/app"
	"github.com/upb/food-enrich/config"
	"github.com/upb/food-enrich/middleware"
	"github.com/upb/food-enrich/services"
	"github.com/upb/food-enrich/services/enrichment"
	"github.com/upb/food-enrich/services/nutrition"
	"github.com/upb/food-enrich/services/providers"
	"github.com/upb/food-enrich/services/serving"
)

// newLookupCmd resolves a query with the configured providers
func newLookupCmd() *cobra.Command {
	var (
		lookupContext string
		useFixtures   bool
		fixturesFile  string
	)

	cmd := &cobra.Command{
		Use:   "lookup <query>",
		Short: "Resolve a food query through the provider router",
		Long: `Resolves a query exactly as POST /api/v1/enrich does and prints the
response, including the routing decision and per-provider attempts.

Provider credentials and routing flags are read from the environment.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.New(ctx)
			if err != nil {
				return err
			}
			if useFixtures {
				cfg.Providers.UseFixtures = true
			}
			if fixturesFile != "" {
				cfg.Providers.FixturesFile = fixturesFile
			}
			cfg.RateLimit.Enabled = false

			deps, err := app.NewDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close(ctx)

			resp, err := deps.Enrichment.Enrich(ctx, enrichment.EnrichRequest{
				Query:   strings.Join(args, " "),
				Context: providers.LookupContext(lookupContext),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&lookupContext, "context", "c", string(providers.ContextManual), "Lookup context (manual or scan)")
	cmd.Flags().BoolVar(&useFixtures, "fixtures", false, "Serve every provider from fixtures")
	cmd.Flags().StringVar(&fixturesFile, "fixtures-file", "", "YAML fixture document replacing the built-in set")
	return cmd
}

// newServingCmd parses a serving label
func newServingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serving <text>",
		Short: "Parse a serving-size label into grams",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return services.ErrInvalidInput.Clone().WithDetail("text", "text is required")
			}
			return writeJSON(cmd.OutOrStdout(), serving.ParseServingFromText(text))
		},
	}
}

// newNormalizeCmd normalizes a nutriments JSON document
func newNormalizeCmd() *cobra.Command {
	var (
		file  string
		grams float64
	)

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize a nutriment document to one serving",
		Long: `Reads a JSON object of raw nutriment fields (Open Food Facts style keys)
and prints calories and macros for one serving. Use --file - to read stdin.

Without --grams the serving is taken from the document itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open nutriments: %w", err)
				}
				defer f.Close()
				in = f
			}

			var raw map[string]any
			if err := json.NewDecoder(in).Decode(&raw); err != nil {
				return fmt.Errorf("invalid nutriments document: %w", err)
			}
			if len(raw) == 0 {
				return services.ErrInvalidNutrients
			}

			var result nutrition.NormalizedNutrition
			if cmd.Flags().Changed("grams") {
				if grams <= 0 {
					return services.ErrInvalidInput.Clone().WithDetail("grams", "grams must be positive")
				}
				result = nutrition.Normalize(raw, &grams)
			} else {
				result = nutrition.NormalizeProduct(raw)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Path to the nutriments JSON document")
	cmd.Flags().Float64Var(&grams, "grams", 0, "Serving size in grams")
	return cmd
}

// newTokenCmd signs a bearer token with AUTH_JWT_SECRET
func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		Long: `Signs an HS256 token with AUTH_JWT_SECRET. Issuer and audience are taken
from AUTH_JWT_ISSUER and AUTH_JWT_AUDIENCE when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			token, err := middleware.SignToken(middleware.JWTConfig{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
			}, subject, jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
