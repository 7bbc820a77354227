package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

func (n *NoopCollector) SessionStarted(account string)             {}
func (n *NoopCollector) SessionFinished(account string, ok bool)   {}
func (n *NoopCollector) TLSConnectionEstablished(account string)   {}
func (n *NoopCollector) AuthAttempt(account string, success bool)  {}
func (n *NoopCollector) CommandProcessed(account, command string)  {}
func (n *NoopCollector) MessageDownloaded(account string, sizeBytes int64) {}
func (n *NoopCollector) MessageDeleted(account string)             {}
func (n *NoopCollector) DuplicateSkipped(account string)           {}
func (n *NoopCollector) ErrorObserved(account, kind string)        {}
