// Package callback implements the temporary local HTTP listener that catches
// the OAuth provider's redirect during an authorization code flow.
//
// The listener accepts exactly one callback carrying both code and state,
// stores them unchanged, shows a static confirmation page and closes Done().
// A request missing either parameter gets 400 and stores nothing. A provider
// error redirect (error=access_denied and friends) is recorded separately and
// closes Failed() so the waiting driver can stop early.
//
// # Usage
//
//	l := callback.NewListener(callback.Options{Port: 8090})
//	callbackURL, err := l.Listen()
//	go l.Serve(ctx)
//	defer l.Stop()
//	<-l.Done()
//	result, _ := l.Result()
package callback
