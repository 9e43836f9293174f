// Package content holds the CMS collaborators behind the admission layer:
// user accounts, pages and the site build trigger. Storage is in process
// memory.
package content
