/*
Package types provides the core interfaces, data structures, and type definitions for the
federated inventory router.

# Architecture Overview

	┌─────────────────────────────────────────────┐
	│          Session host / RPC server          │
	│   (internal/session, internal/server)       │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│              Inventory Router               │
	│             (internal/router)               │
	└─────────────────────────────────────────────┘
	          │            │              │
	┌─────────┴───┐ ┌──────┴──────┐ ┌─────┴──────┐
	│ Local store │ │   Caches    │ │ Connectors │
	│  (sqlite)   │ │ url/conn/res│ │ (remote)   │
	└─────────────┘ └─────────────┘ └────────────┘

# Core Interfaces

InventoryService:
The full inventory verb surface. The local store, every remote connector and the
router implement it, so the router can be stacked or replaced by a test double.

IdentityResolver:
Tells whether an account is local and, for foreign accounts, where its home
inventory service lives.

SessionHost and Session:
Expose the sessions hosted by this process and the presences inside them.

# Results

Every verb returns a Result. Value holds exactly what a caller of the classic
nil/false/empty API would observe; Status says why. A failed remote call and a
missing folder both produce a nil Value, but only the former has StatusFailed.

	res := svc.GetRootFolder(ctx, userID)
	switch res.Status {
	case types.StatusOK:
		use(res.Value)
	case types.StatusFailed:
		log.Warn("inventory unreachable", zap.Error(res.Err))
	}

# Thread Safety

Implementations of InventoryService must be safe for concurrent use. Returned
collections and slices are snapshots and must not be mutated by callers.
*/
package types
