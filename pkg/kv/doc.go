// Package kv provides the small key-value abstraction the snapshot cache falls
// back to when Redis is unreachable.
//
// Example usage:
//
//	store := memory.NewStore()
//	defer store.Close()
//
//	ctx := context.Background()
//	if err := store.Set(ctx, "ms:snapshot:pool", data, 10*time.Minute); err != nil {
//		log.Fatal(err)
//	}
//
//	value, err := store.Get(ctx, "ms:snapshot:pool")
//	if errors.Is(err, kv.ErrNotFound) {
//		log.Println("nothing cached yet")
//	}
//
// Values are opaque bytes; callers encode JSON themselves.
package kv
