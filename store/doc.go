// Package store provides the volatile keyed store shared by the session and
// rate-limit layers: string keys, opaque values, per-key expiry.
//
// A [Client] is backed by Redis when one of its candidate addresses answers
// during [Client.Connect], and by an in-process map otherwise. Connect walks
// an explicit state machine:
//
//	Unattempted -> Connecting -> Connected
//	                          -> Fallback
//
// Connected and Fallback are terminal for the lifetime of the Client. A Redis
// error after a successful connect is returned to the caller as
// [ErrUnavailable]; the Client never switches to the map afterwards.
//
// [Store] is a typed view over a Client that serializes values with a
// [Marshaler] (JSON by default) and optionally namespaces keys.
//
// Example:
//
//	client := store.NewClient(
//	    store.WithCandidates(store.Candidate{Addr: "localhost:6379"}),
//	    store.WithConnectTimeout(2*time.Second),
//	)
//	defer client.Close()
//
//	counters := store.New[int](client, nil, store.WithPrefix("hits"))
//	_ = counters.Set(ctx, "home", 1, time.Minute)
package store
