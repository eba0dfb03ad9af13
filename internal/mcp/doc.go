// Package mcp implements the Model Context Protocol (MCP) server for the
// listing search engine.
//
// The server exposes four tools:
//   - search_listings: filter, score and sort active listings
//   - create_listing: store a listing for an existing provider (only when a
//     writable store is configured)
//   - invalidate_cache: force the next search to reload from the store
//   - get_status: cache freshness, search counters and store statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Tool: search_listings
//
//	Request:
//	{
//	  "name": "search_listings",
//	  "arguments": {
//	    "query": "cleaning",
//	    "max_price": 10000,
//	    "city": "Lisbon",
//	    "sort_by": "relevance",
//	    "limit": 10
//	  }
//	}
//
//	Response:
//	{
//	  "total": 2,
//	  "returned": 2,
//	  "sort_by": "relevance",
//	  "results": [
//	    {"rank": 1, "relevance_score": 135, "listing": {...}, "provider": {...}},
//	    ...
//	  ]
//	}
//
// Every argument is optional. An unknown sort_by falls back to relevance.
// An empty result set is a normal response, not an error.
//
// # Tool: create_listing
//
// Stores the listing under a generated ID and invalidates the search
// cache, so the listing shows up in the next search.
//
// # Errors
//
// Errors are returned as MCPError values:
//
//	-32602 invalid params (bad limit, rating, price or location mode)
//	-32603 internal error
//	-32001 listing data unavailable; the client should retry later
//	-32002 provider not found (create_listing)
//
// A data-unavailable error never carries the underlying cause; it is
// logged on the server side only.
package mcp
