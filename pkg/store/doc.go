// Package store keeps flattened study tables in Redis under a name so that
// separately fetched datasets can be listed, reloaded and merged later.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	s := store.NewStore(redisClient)
//
//	// Save a fetched table for a day
//	name := store.DatasetKey(query)
//	if err := s.Save(ctx, name, trials, 24*time.Hour); err != nil {
//		return err
//	}
//
//	// Load it again
//	ds, err := s.Load(ctx, name)
//	if errors.Is(err, store.ErrDatasetNotFound) {
//		// fetch again
//	}
//
// # Key Layout
//
// Datasets live at ctgov:dataset:<name>. The value is a JSON document with
// the table, the time it was saved and its row count.
//
// # Metrics
//
//   - ctgov_store_operations_total{operation, result}
//   - ctgov_store_bytes_written_total
package store
