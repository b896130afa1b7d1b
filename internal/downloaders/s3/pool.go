package s3

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	riphttp "github.com/tanq16/ripfetch/internal/downloaders/http"
	"github.com/tanq16/ripfetch/internal/utils"
)

// Pool hands each task to a Downloader whose client was built for the
// task's AWS profile. Clients are created on first use and reused.
type Pool struct {
	opts      ClientOptions
	stream    *riphttp.StreamDownloader
	observer  utils.Observer
	newClient func(context.Context, ClientOptions) (*s3.Client, error)

	mu        sync.Mutex
	byProfile map[string]*Downloader
}

func NewPool(opts ClientOptions, stream *riphttp.StreamDownloader, observer utils.Observer) *Pool {
	if observer == nil {
		observer = utils.NopObserver{}
	}
	return &Pool{
		opts:      opts,
		stream:    stream,
		observer:  observer,
		newClient: NewClient,
		byProfile: make(map[string]*Downloader),
	}
}

func (p *Pool) Download(ctx context.Context, task *utils.Task) utils.Result {
	d, err := p.downloaderFor(ctx, task.Profile)
	if err != nil {
		p.observer.Started(task.URL)
		p.observer.Errored(task.URL, err)
		return utils.Result{URL: task.URL, Status: utils.StatusFailed, Err: err}
	}
	return d.Download(ctx, task)
}

func (p *Pool) downloaderFor(ctx context.Context, profile string) (*Downloader, error) {
	if profile == "" {
		profile = p.opts.Profile
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.byProfile[profile]; ok {
		return d, nil
	}
	opts := p.opts
	opts.Profile = profile
	client, err := p.newClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	d := New(client, p.stream, p.observer)
	p.byProfile[profile] = d
	return d, nil
}
