// Package http turns recipes into HTTP requests, sends them and records the
// resulting exchanges. Engine is the entry point. The life cycle of a request:
//
//	Recipe + BuildOptions
//	        |
//	  NewRequestSeed
//	        v
//	  RequestSeed  --Build--> *BuildError
//	        |
//	        v
//	     Ticket    --Send---> *RequestError
//	        |
//	        v
//	    Exchange   (persisted best-effort)
//
// Every transition consumes its input: a seed builds one ticket, and a ticket
// sends once. BuildURL and BuildBody render a subset of a recipe for previews
// without touching the network.
package http
