// Package egress manages the set of network paths (direct and proxied)
// used to reach remote repositories.
//
// At startup every configured endpoint is probed against a well-known URL
// and optionally throughput-tested; only endpoints that pass are kept.
// [Pool.IsLive] memoizes which endpoints reach a given URL, and
// [Pool.Get] uses that affinity for every later request under the URL.
//
//	eps, _ := egress.ParseProxies("10.0.0.10-12:3128,")
//	pool, err := egress.New(ctx, egress.Config{Endpoints: eps})
//	resp, err := pool.Get(ctx, "https://repo1.maven.org/maven2/...")
package egress
