package cmd

import (
	"fmt"
	"os"

	"github.com/BitPonyLLC/huematch/internal/image_matcher"
	"github.com/BitPonyLLC/huematch/pkg/catalog"
	"github.com/BitPonyLLC/huematch/pkg/palette"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// newMatcher builds the extractor and metric from the match.* settings.
func newMatcher() (*image_matcher.Matcher, error) {
	k := viper.GetInt("match.k")
	if k < 1 {
		return nil, fmt.Errorf("%w, got %d", palette.ErrInvalidK, k)
	}

	metric, err := palette.MetricByName(viper.GetString("match.strategy"))
	if err != nil {
		return nil, err
	}

	km := palette.NewKMeans(k, viper.GetInt64("match.seed"))
	km.Strict = viper.GetBool("match.strict")

	if n := viper.GetInt("match.max-iterations"); n > 0 {
		km.MaxIterations = n
	}

	if tol := viper.GetFloat64("match.tolerance"); tol > 0 {
		km.Tolerance = tol
	}

	log.Debug().Int("k", km.K).Int64("seed", km.Seed).Bool("strict", km.Strict).
		Str("strategy", viper.GetString("match.strategy")).Msg("matcher")

	return image_matcher.New(km, metric), nil
}

func newLoader(m *image_matcher.Matcher) *catalog.Loader {
	return &catalog.Loader{Path: viper.GetString("catalog"), Source: m, Log: &log.Logger}
}

// loadCatalog builds the matcher and loads the catalog in one go, mapping
// failures to exit codes.
func loadCatalog() (*image_matcher.Matcher, *catalog.Loader, *catalog.Snapshot, error) {
	m, err := newMatcher()
	if err != nil {
		return nil, nil, nil, fail(codeConfig, err)
	}

	loader := newLoader(m)
	snap, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fail(codeCatalog, err)
	}

	return m, loader, snap, nil
}

func readImage(pathname string) ([]byte, error) {
	data, err := os.ReadFile(pathname)
	if err != nil {
		return nil, fail(codeRead, "unable to read %s: %w", pathname, err)
	}
	return data, nil
}
