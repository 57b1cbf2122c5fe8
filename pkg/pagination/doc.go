// Package pagination drives continuation-token pagination.
//
// The ClinicalTrials.gov search API returns a nextPageToken with every page
// that has a successor. The final page carries no token. A Walker calls a
// PageFunc with the current token until a page comes back without one:
//
//	w := pagination.NewWalker(pagination.DefaultConfig())
//	pages, err := w.Walk(ctx, func(ctx context.Context, token string) (string, error) {
//		page, err := c.FetchPage(ctx, q, token)
//		if err != nil {
//			return "", err
//		}
//		// consume page.Studies
//		return page.NextPageToken, nil
//	})
//
// Pages are fetched strictly in sequence: each token is only known once the
// previous page has arrived. With MaxPages at zero there is no upper bound
// other than the registry ending the token chain.
package pagination
