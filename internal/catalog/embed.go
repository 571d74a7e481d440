package catalog

import _ "embed"

// defaultCatalogJSON ships the baseline category tree so the service can boot
// without an external catalog file. Deployments override it via
// API_CATALOG_FILE.
//
//go:embed catalog.json
var defaultCatalogJSON []byte
