/*
Package cache provides the three caches owned by the inventory router.

	┌─────────────────────────────────────────────┐
	│              Inventory Router               │
	└─────────────────────────────────────────────┘
	          │              │              │
	┌─────────┴───┐ ┌────────┴────┐ ┌───────┴─────┐
	│  URLCache   │ │ Connector   │ │ ResultCache │
	│ user → url  │ │ Cache       │ │ per-user    │
	│             │ │ url → conn  │ │ remote reads│
	└─────────────┘ └─────────────┘ └─────────────┘

URLCache:
Memoizes the home inventory endpoint of foreign users. Resolution consults
the presences of hosted sessions first and the identity resolver second.
Absence is never cached, so a user that cannot be resolved now is retried on
the next call.

ConnectorCache:
Keeps at most one connector per endpoint. Lookup and construction run under a
single mutex, so concurrent first calls for one endpoint construct once.
Entries live for a fixed TTL from insertion and are evicted lazily.

ResultCache:
Four per-user maps (root folder, folder by type, folder content, folder
items). Nothing expires and writes do not invalidate; the router clears a
user's entries when their last hosted session closes.

All caches are safe for concurrent use.
*/
package cache
