// Package pagination aggregates paginated upstream collections and slices the
// combined result into fixed-size windows with circular navigation links.
//
// Two aggregation strategies are supported:
//
//   - Fixed range: pages 1..N are fetched concurrently (bounded by
//     MaxConcurrency) and concatenated in page order. One failed page fails
//     the whole run.
//   - Follow cursor: pages are fetched sequentially while the previous page
//     reports a next page, up to MaxPages.
//
// Example usage:
//
//	agg := pagination.NewAggregator(swapiClient, pagination.DefaultConfig())
//	people, err := agg.Aggregate(ctx, swapi.People, pagination.FixedPlan(5))
//	if err != nil {
//		return err
//	}
//	page := pagination.ParsePageParam(r.URL.Query().Get("pg"))
//	data := pagination.Window(people, page)
//	links := pagination.BuildLinks(r.URL.Path, "name", page)
//
// Windows are WindowSize entities wide and numbered MinPage..MaxPage; any
// other page value selects the whole collection.
package pagination
