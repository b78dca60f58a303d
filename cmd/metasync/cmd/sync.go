package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opendatabs/metasync/cmd/metasync/app"
	"github.com/opendatabs/metasync/internal/dataspot"
	"github.com/opendatabs/metasync/internal/report"
	"github.com/opendatabs/metasync/internal/sources/lawregistry"
	"github.com/opendatabs/metasync/internal/sources/odsportal"
	"github.com/opendatabs/metasync/internal/sources/staatskalender"
	"github.com/opendatabs/metasync/internal/transport"
	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/errors"
	"github.com/opendatabs/metasync/pkg/logging"
	"github.com/opendatabs/metasync/pkg/mapping"
	"github.com/opendatabs/metasync/pkg/sync"
)

func newSyncCmd(profileFile *string) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile source systems into the catalog",
	}
	syncCmd.AddCommand(
		newFamilyCmd(profileFile, "org", "org-units",
			"Sync organizational units from the staff directory"),
		newFamilyCmd(profileFile, "datasets", "datasets",
			"Sync dataset entries from the open-data portal"),
		newFamilyCmd(profileFile, "compositions", "dataset-compositions",
			"Sync dataset compositions and their column attributes"),
		newFamilyCmd(profileFile, "laws", "legal-references",
			"Sync legal references from the law registry"),
		newSyncAllCmd(profileFile),
	)
	return syncCmd
}

func newFamilyCmd(profileFile *string, use, family, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFamilies(cmd.Context(), *profileFile, []string{family})
		},
	}
}

func newSyncAllCmd(profileFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every profile in the profile file, in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := app.LoadProfiles(*profileFile)
			if err != nil {
				return err
			}
			families := make([]string, len(profiles.Profiles))
			for i, p := range profiles.Profiles {
				families[i] = p.Family
			}
			return runFamilies(cmd.Context(), *profileFile, families)
		},
	}
}

func runFamilies(ctx context.Context, profileFile string, families []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	profiles, err := app.LoadProfiles(profileFile)
	if err != nil {
		return err
	}

	var firstErr error
	for _, family := range families {
		if err := runFamily(ctx, cfg, profiles, family); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logging.Error().Str("family", family).Err(err).Msg("sync failed")
		}
	}
	return firstErr
}

func runFamily(ctx context.Context, cfg *app.Config, profiles *app.Profiles, family string) error {
	profile, ok := profiles.Find(family)
	if !ok {
		return errors.NewConfigError("profiles", "no profile for family "+family, nil)
	}

	runID := uuid.NewString()[:8]
	ctx = logging.WithRunID(ctx, runID)
	log := logging.Ctx(ctx)
	log.Info().Str("family", family).Str("scheme", profile.Scheme).Msg("starting sync")

	catalogClient := transport.New(cfg.CatalogURL, catalogAuth(cfg))
	accessor := dataspot.New(catalogClient, profile.Scheme)

	source, err := newSource(cfg, profile, family)
	if err != nil {
		return err
	}

	mappingName := profile.Mapping
	if mappingName == "" {
		mappingName = family + ".csv"
	}
	store := mapping.NewStore(filepath.Join(cfg.MappingDir, mappingName))
	if err := store.Load(); err != nil {
		return err
	}

	pacing := cfg.Pacing
	if profile.Pacing > 0 {
		pacing = profile.Pacing
	}
	opts := []sync.Option{sync.WithPacing(pacing)}
	if profile.CreateStatus != "" {
		opts = append(opts, sync.WithCreateStatus(catalog.Status(profile.CreateStatus)))
	}

	reconciler, err := sync.New(source, accessor, store, opts...)
	if err != nil {
		return err
	}

	records, err := source.Fetch(ctx)
	if err != nil {
		return err
	}

	result, runErr := reconciler.Run(ctx, records)
	if result != nil {
		if _, reportErr := report.NewWriter(cfg.ReportDir).Write(ctx, result); reportErr != nil {
			log.Warn().Err(reportErr).Msg("could not write run report")
		}
	}
	return runErr
}

// sourceFamily is what every reader provides: the records and the
// family's reconciliation behavior.
type sourceFamily interface {
	sync.Source
	sync.Family
}

func newSource(cfg *app.Config, profile app.Profile, family string) (sourceFamily, error) {
	switch family {
	case "org-units":
		if profile.SourceDataset == "" {
			return nil, errors.NewConfigError("profiles", "org-units profile needs source_dataset", nil)
		}
		return staatskalender.NewReader(
			transport.New(cfg.PortalURL, nil), profile.SourceDataset, profile.RootPath), nil
	case "datasets":
		return odsportal.NewDatasetReader(
			transport.New(cfg.PortalURL, nil), cfg.PortalURL, profile.RootPath), nil
	case "dataset-compositions":
		return odsportal.NewCompositionReader(
			transport.New(cfg.PortalURL, nil), cfg.PortalURL, profile.RootPath), nil
	case "legal-references":
		return lawregistry.NewReader(
			transport.New(cfg.RegistryURL, nil), profile.RootPath), nil
	default:
		return nil, errors.NewConfigError("profiles", "unknown family "+family, nil)
	}
}

// catalogAuth builds the catalog authenticator: a cached bearer token
// from the token endpoint when one is configured, none otherwise.
func catalogAuth(cfg *app.Config) transport.Authenticator {
	if cfg.AuthURL == "" {
		return &transport.NoAuth{}
	}
	tokenClient := transport.New(cfg.AuthURL, nil)
	return transport.NewBearerAuth(func(ctx context.Context) (string, time.Duration, error) {
		body := map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     cfg.ClientID,
			"client_secret": cfg.ClientSecret,
		}
		var token struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		if err := tokenClient.Post(ctx, "/", body, &token); err != nil {
			return "", 0, err
		}
		return token.AccessToken, time.Duration(token.ExpiresIn) * time.Second, nil
	})
}
