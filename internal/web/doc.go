// Package web is the HTTP front-end: the public map page, its JSON data
// endpoints, the static files and the admin pages that queue tasks.
//
// Handlers keep no state between requests; everything lives in the store
// and the broker so that any number of front-ends can run side by side.
package web
