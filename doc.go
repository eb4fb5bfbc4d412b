// Command-free library module asynchttp implements an asynchronous
// HTTP/1.1 client with WebSocket upgrade support, built around a small
// reactor of goroutine-backed worker loops instead of one goroutine per
// request.
//
// client.Client is the entry point: Submit (and the Get/Post/Put/Delete/
// Head convenience wrappers) hand a request to the reactor and return a
// *future.ResponseFuture immediately. Callers observe the request's
// lifecycle — connecting, headers, content chunks, redirects, WebSocket
// frames, completion or failure — by registering observers on the
// returned future rather than blocking on the call.
package asynchttp
