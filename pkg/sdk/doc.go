// Package catalogsearch provides a Go client for the catalogsearch HTTP API.
//
// The service answers natural-language product queries against a hardware
// store catalog, falling back from AI-assisted strategies to plain text
// matching when the language model or embedding provider is unavailable.
//
//	client, _ := catalogsearch.New("http://localhost:8080",
//	    catalogsearch.WithAPIKey(os.Getenv("API_KEY")),
//	)
//	res, _ := client.Search(ctx, "tubo pvc 1/2",
//	    catalogsearch.WithLimit(10),
//	    catalogsearch.WithThreshold(0.5),
//	)
//	for _, p := range res.Results {
//	    fmt.Println(p.ID, p.Name)
//	}
//
// Errors returned by the service unwrap to the sentinels in this package,
// so callers can use errors.Is:
//
//	if errors.Is(err, catalogsearch.ErrIndexingInProgress) { ... }
package catalogsearch
