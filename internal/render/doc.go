// Package render turns hourly counts and trip subsets into view models for
// the dashboard. Each model is either drawn server-side as SVG (bar chart and
// point map) or serialized to JSON and handed to a browser map library
// (deck.gl scatter layer and Leaflet markers). Renderers never mutate their
// input.
package render
