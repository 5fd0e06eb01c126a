// Package extraction reads trade details out of chart and broker screenshots
// with a vision-capable language model.
//
// # Architecture
//
// An Extractor sends the signed screenshot URL to the model together with a
// system prompt describing the expected JSON. The model's reply is passed
// through Normalize, which reconciles the field names different prompts and
// models tend to produce into one ExtractedTrade:
//
//	Screenshot URL → Extractor.Extract → raw JSON → Normalize → ExtractedTrade → trade.Draft
//
// # Providers
//
//   - openai: direct chat-completions HTTP client with rate limiting and retries
//   - langchain: the same prompt through langchaingo's OpenAI model
//   - disabled: NoOpExtractor, used when no API key is configured
//
// # Failure handling
//
// Extraction is advisory. Callers log failures and continue without a
// prefilled form.
package extraction
