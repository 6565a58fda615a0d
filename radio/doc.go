// Package radio contains radio drivers for the provisioning controller.
//
// Simulated implements interfaces.Radio in process. Drivers for real
// hardware are platform specific and live outside this module.
package radio
