// Package stubserver serves a minimal NuGet v3 feed from memory.
//
// The feed exposes a service index, a PackageBaseAddress flat container and
// a PackagePublish endpoint, which is the surface restore traffic and the
// push command use. A fixed latency can be added to every response, which
// makes the server a predictable replay target:
//
//	srv := stubserver.New(stubserver.Config{Latency: 20 * time.Millisecond, Synthetic: true})
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
//	plan, _ := replay.FromOperations(g, []string{ts.URL + stubserver.FlatContainerPath})
//
// With Synthetic set, unknown ids answer with a one-version list and any
// well-formed .nupkg URL is served with placeholder content, so graphs
// captured against a real feed replay without seeding packages.
package stubserver
