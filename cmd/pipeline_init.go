package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/treeprice/internal/catalog"
	"github.com/sells-group/treeprice/internal/config"
	"github.com/sells-group/treeprice/internal/model"
	"github.com/sells-group/treeprice/internal/property"
	"github.com/sells-group/treeprice/internal/store"
)

// initStore opens and migrates the configured run history store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: c.Store.MaxConns,
		MinConns: c.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// propertyOptions maps the data config onto preprocessing options.
func propertyOptions(c *config.Config) property.Options {
	return property.Options{
		Delimiter:    c.Data.DelimiterRune(),
		Encoding:     c.Data.Encoding,
		SheetName:    c.Data.SheetName,
		PriceColumn:  c.Data.PriceColumn,
		DateColumn:   c.Data.DateColumn,
		StreetColumn: c.Data.StreetColumn,
		EmptyMedian:  property.EmptyMedianPolicy(c.Data.EmptyMedian),
	}
}

// loadDataset reads the tree catalog, flattens it into the street map and
// joins it onto the sale register.
func loadDataset(ctx context.Context, c *config.Config) (*property.Dataset, error) {
	cat, err := catalog.Load(c.Data.TreesPath)
	if err != nil {
		return nil, err
	}
	streets, stats := catalog.Build(cat)
	zap.L().Info("built street tree map",
		zap.String("path", c.Data.TreesPath),
		zap.Int("streets", stats.Streets),
		zap.Int("known_heights", stats.Known),
		zap.Int("duplicates", stats.Duplicates),
	)

	return property.Load(ctx, c.Data.PropertiesPath, streets, propertyOptions(c))
}

// runInput records the training parameters of c.
func runInput(c *config.Config) model.RunInput {
	return model.RunInput{
		TreesPath:      c.Data.TreesPath,
		PropertiesPath: c.Data.PropertiesPath,
		Features:       append([]string(nil), c.Model.Features...),
		Target:         c.Model.Target,
		Seed:           c.Model.Seed,
		TestSize:       c.Model.TestSize,
		Estimators:     c.Model.Estimators,
		Folds:          c.Model.Folds,
	}
}
