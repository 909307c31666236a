// Package listing holds the product snapshot model and the diff that decides
// which products are new.
//
// A Set keeps the insertion order of the fetch that built it, so the order of
// notifications follows the order the product API listed them in, and a cache
// file written from a Set lists products in that same order.
package listing
