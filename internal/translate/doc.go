// Package translate fills in the translated text of a transcript.
//
// Four services are supported: an OpenAI-compatible LLM (with an optional
// reflection pass), a self-hosted DeepLX endpoint, Bing, and Google web
// translation. Providers only translate batches; the surrounding dispatch,
// ordering, and progress bookkeeping are shared.
package translate
