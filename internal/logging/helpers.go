package logging

// Package-level helpers so call sites stay terse: logging.Pipeline(...)
// instead of logging.Get(logging.CategoryPipeline).Info(...).

// Boot logs to the boot category at info level.
func Boot(format string, args ...any) { Get(CategoryBoot).Info(format, args...) }

// Pipeline logs to the pipeline category at info level.
func Pipeline(format string, args ...any) { Get(CategoryPipeline).Info(format, args...) }

// PipelineDebug logs to the pipeline category at debug level.
func PipelineDebug(format string, args ...any) { Get(CategoryPipeline).Debug(format, args...) }

// Discovery logs to the discovery category at info level.
func Discovery(format string, args ...any) { Get(CategoryDiscovery).Info(format, args...) }

// DiscoveryDebug logs to the discovery category at debug level.
func DiscoveryDebug(format string, args ...any) { Get(CategoryDiscovery).Debug(format, args...) }

// Crawler logs to the crawler category at info level.
func Crawler(format string, args ...any) { Get(CategoryCrawler).Info(format, args...) }

// CrawlerDebug logs to the crawler category at debug level.
func CrawlerDebug(format string, args ...any) { Get(CategoryCrawler).Debug(format, args...) }

// Verifier logs to the verifier category at info level.
func Verifier(format string, args ...any) { Get(CategoryVerifier).Info(format, args...) }

// Extractor logs to the extractor category at info level.
func Extractor(format string, args ...any) { Get(CategoryExtractor).Info(format, args...) }

// ExtractorDebug logs to the extractor category at debug level.
func ExtractorDebug(format string, args ...any) { Get(CategoryExtractor).Debug(format, args...) }

// Store logs to the store category at info level.
func Store(format string, args ...any) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs to the store category at debug level.
func StoreDebug(format string, args ...any) { Get(CategoryStore).Debug(format, args...) }

// Inference logs to the inference category at info level.
func Inference(format string, args ...any) { Get(CategoryInference).Info(format, args...) }

// InferenceDebug logs to the inference category at debug level.
func InferenceDebug(format string, args ...any) { Get(CategoryInference).Debug(format, args...) }

// Usage logs to the usage category at info level.
func Usage(format string, args ...any) { Get(CategoryUsage).Info(format, args...) }
