// Package rag orchestrates the retrieval-augmented answering pipeline:
// ingesting source documents into the vector store, semantic search with
// relevance scoring, and grounded prompt composition for the generation
// engine.
//
// The pipeline degrades locally wherever it can. A chunk that fails to
// embed is skipped, a snapshot that fails to persist is logged, and an
// inconsistent lookup entry is dropped from search results. Only a failed
// generation call surfaces as an error to the caller.
package rag
