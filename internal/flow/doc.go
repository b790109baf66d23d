// Package flow drives a browser-based OAuth2 authorization code flow against
// a locally running backend and reports whether the backend completes it.
//
// A run has four sequential steps:
//
//  1. authorize: GET {backend}/api/auth/{provider}; the backend must answer
//     with a redirect whose Location is the provider's consent URL.
//  2. browser: open that URL so the user can approve.
//  3. wait: poll the local callback listener until the provider redirects
//     back with code and state, or the timeout elapses.
//  4. replay: GET {backend}/api/auth/{provider}/callback?code=..&state=..
//     with the same cookie jar and classify the answer.
//
// Every failure is terminal for the run and nothing is retried. The callback
// listener runs in its own goroutine under an errgroup and is torn down on
// every exit path.
package flow
