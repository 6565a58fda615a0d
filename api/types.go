package api

// Portal routes.
const (
	RouteRoot    = "/"
	RouteSave    = "/save"
	RouteFavicon = "/favicon.ico"
	RouteStyle   = "/style.css"
	RouteRefresh = "/refresh.png"
)

// Form fields posted to RouteSave.
const (
	FormFieldSSID     = "ssid"
	FormFieldPassword = "password"
)

// SelectPlaceholder is the first option of the network list. Submitting it
// is rejected in the browser.
const SelectPlaceholder = "Select your Wi-Fi"
