/*
Package router implements the federated inventory router.

A Router serves every inventory verb for any user. Users with no known
remote home inventory are served by the local service; for foreign users
the router resolves the home endpoint and forwards the call through a
cached connector:

	caller ─▶ Router ─▶ URLCache.Resolve(user)
	                     │
	          absent ◀───┴───▶ endpoint
	            │                 │
	      local service     ResultCache (remote reads)
	                              │ miss
	                        ConnectorCache.GetOrCreate(endpoint)
	                              │
	                        remote connector

Remote GetRootFolder, GetFolderForType, GetFolderContent and GetFolderItems
results are kept per user until the user's last local session closes
(HandleClientClosed). Writes never touch that cache, so a read after a write
may return the value seen before the write.

Every verb returns a types.Result. Value holds the same sentinel for not
found, rejected and failed calls; Status tells them apart. Remote failures are
never retried.

# Usage

	r, err := router.New(router.Dependencies{
		Local:            store,
		Identity:         directory,
		Sessions:         host,
		ConnectorFactory: connector.Factory(connector.Config{}),
		Options:          router.DefaultOptions(),
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	host.OnClientClosed(r.HandleClientClosed)

	root := r.GetRootFolder(ctx, userID)

NewAsync wraps any InventoryService, a Router included, with the Future form
of each verb.
*/
package router
