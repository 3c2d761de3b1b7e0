// Package office drives a locally installed LibreOffice as the conversion
// engine.
//
// Local keeps a small pool of headless soffice listener processes, one per
// instance, each with its own locked user profile and socket port. A
// conversion borrows an idle instance and runs soffice --convert-to against
// that instance's profile, so the work lands on the warm process instead of a
// cold start. Listener processes run in their own process group and are
// terminated as a group on Stop.
package office
