// Command catalogsearch serves product search over a Postgres catalog
// with AI query reformulation and fallback strategies.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
