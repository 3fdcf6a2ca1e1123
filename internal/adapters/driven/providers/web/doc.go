// Package web serves HTML documents. Readability extraction strips chrome
// for overview and extraction; goquery answers structural queries directly
// against the DOM.
package web
