// Package domain defines the core failmap entities (organizations, their
// urls and endpoints, scan results and ratings) together with admin users and
// sessions. Entities validate themselves; persistence lives in the store
// packages.
package domain
