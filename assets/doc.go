// Package assets provides the portal's static files: icon, stylesheet,
// reload image and the confirmation page.
package assets
