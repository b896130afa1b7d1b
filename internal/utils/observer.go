package utils

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Started(string) {}
func (NopObserver) TotalBytes(string, int64) {}
func (NopObserver) BytesCompleted(string, int64) {}
func (NopObserver) Exists(string, string) {}
func (NopObserver) Skipped(string, string) {}
func (NopObserver) Completed(string, string) {}
func (NopObserver) Errored(string, error) {}
func (NopObserver) Interrupted(string) {}
func (NopObserver) LimitReached() {}

// MultiObserver fans every event out to each member in order.
type MultiObserver []Observer

func (m MultiObserver) Started(url string) {
	for _, o := range m {
		o.Started(url)
	}
}

func (m MultiObserver) TotalBytes(url string, n int64) {
	for _, o := range m {
		o.TotalBytes(url, n)
	}
}

func (m MultiObserver) BytesCompleted(url string, n int64) {
	for _, o := range m {
		o.BytesCompleted(url, n)
	}
}

func (m MultiObserver) Exists(url, path string) {
	for _, o := range m {
		o.Exists(url, path)
	}
}

func (m MultiObserver) Skipped(url, reason string) {
	for _, o := range m {
		o.Skipped(url, reason)
	}
}

func (m MultiObserver) Completed(url, path string) {
	for _, o := range m {
		o.Completed(url, path)
	}
}

func (m MultiObserver) Errored(url string, err error) {
	for _, o := range m {
		o.Errored(url, err)
	}
}

func (m MultiObserver) Interrupted(url string) {
	for _, o := range m {
		o.Interrupted(url)
	}
}

func (m MultiObserver) LimitReached() {
	for _, o := range m {
		o.LimitReached()
	}
}
