// Package core provides the transform stage of the catalog load.
//
// This package holds all domain logic that does not touch the network or the
// filesystem. It can be driven by the pipeline, the HTTP API or tests without
// modification.
//
// # Architecture
//
// A feed chunk moves through three steps:
//
//  1. [Clean] turns raw rows into typed [Record] values, trims text, coerces
//     numeric columns and drops repeated product ids (first occurrence wins)
//  2. [Project] fans the cleaned chunk out to the six registered tables
//  3. [Loader.LoadChunk] appends each table view to a [Sink]
//
// # Table Registry
//
// Target tables are registered at init time using [Register]. Each [TableDef]
// names its columns and two policies:
//
//	core.Register(TableDef{
//	    Name:           "products",
//	    Columns:        []string{"product_id", "sku_id", ...},
//	    RequireColumns: true, // a missing header column is ErrSchemaMismatch
//	})
//
// The sellers table sets Dedup, which drops identical rows within a chunk.
// Nothing dedups across chunks: a product id repeated in two chunks is written
// twice, and a second run over the same feed doubles every table.
//
// # Numbers
//
// Numeric columns use [Number] (a pgtype.Float8). A value that is empty or
// does not parse is stored as an invalid Number, which sinks write as NULL.
package core
