// Package container is the registry of a booted component graph and the
// Service Provider system that feeds it.
//
// # Overview
//
// Components are registered in a scanner.Table, resolved and instantiated in
// one boot pass, then published in a Container. The Container answers
// queries by type, qualifier and role tag, and supports replacing or
// rebuilding single components afterwards.
//
// # Container Lifecycle
//
//  1. Register providers: registry.Register(&MyProvider{})
//  2. Discover and scan the table, resolve the graph
//  3. Init: c.Init(components); a second Init fails with ErrDoubleInit
//  4. Boot providers: registry.Boot(c); every lookup works from here
//  5. Shutdown: c.Shutdown(); consumers are destroyed first
//
// framework/app runs these steps for you.
//
// # Lookups
//
//	// Untyped
//	v, ok := c.Lookup(reflect.TypeFor[Cache]())
//
//	// Generic, no type assertion required
//	cache, ok := container.Get[Cache](c)
//	left, ok := container.GetNamed[Mirror](c, "left")
//	all := container.All[Reporter](c)
//	jobs := container.Tagged[Job](c, "scheduled")
//
// When several components match a single lookup, the first registered one
// wins.
//
// # Update and Reload
//
//	// Swap the live instance, running the old one's pre-destroy hook
//	err := c.Update(reflect.TypeFor[Cache](), newCache, true)
//
//	// Rebuild from the recorded requirements; cascade to dependents that
//	// hold the raw instance
//	fresh, err := c.Reload(cache, true)
//
// Proxy-scoped components are never cascaded: their consumers hold the
// stand-in, which forwards to whatever instance is current.
//
// # Supplied values
//
//	s := container.NewSupplier()
//	container.Needs[string](s, "storagePath").GiveValue("/tmp/photos")
//	// pass s to the resolver as an external resolver
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(t *scanner.Table) {
//	    t.Component(mail.NewSMTP, scanner.As[mail.Mailer]())
//	}
//
//	func (p *AppServiceProvider) Boot(c *container.Container) error {
//	    // safe to look up other components here
//	    return nil
//	}
package container
