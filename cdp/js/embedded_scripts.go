// Package js holds the scripts sessions evaluate in pages.
package js

import (
	_ "embed"
)

// FindCSSScript returns the elements of the document matching a CSS
// selector.
//
//go:embed find_css.js
var FindCSSScript string

// FindXPathScript returns the nodes of the document matching an XPath
// expression, in document order.
//
//go:embed find_xpath.js
var FindXPathScript string

// ElementTextScript is called on an element and returns its rendered text.
//
//go:embed element_text.js
var ElementTextScript string

// ElementAttributeScript is called on an element and returns the named
// attribute, or null.
//
//go:embed element_attribute.js
var ElementAttributeScript string

// ElementClickScript is called on an element, scrolls it into view and
// clicks it.
//
//go:embed element_click.js
var ElementClickScript string
