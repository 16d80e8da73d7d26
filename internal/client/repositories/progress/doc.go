// Package progress is the local progress cache: per skill category, the set
// of completed item identifiers.
//
// Each category is one row holding a JSON array, the layout the web client
// kept in browser local storage. Reads are forgiving: a missing row, a
// non-array value or a database error all read as an empty set, string and
// number elements are kept as identifiers, and anything else is dropped.
package progress
