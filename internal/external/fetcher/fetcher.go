package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"

	"schedparser/internal/config"
	"schedparser/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher загружает страницы расписания через colly.
// Лимитер запросов общий для всех горутин.
type Fetcher struct {
	transport *http.Transport
	limiter   *rate.Limiter
	retry     config.RetryConfig
	httpCfg   config.HTTPClientConfig
	userAgent string
	logger    *zap.Logger
	requests  atomic.Int64
}

// New создает новый загрузчик
func New(cfg *config.Config, logger *zap.Logger) *Fetcher {
	limit := rate.Inf
	if cfg.FetchConfig.RateLimit > 0 {
		limit = rate.Limit(cfg.FetchConfig.RateLimit)
	}
	burst := cfg.FetchConfig.Burst
	if burst < 1 {
		burst = 1
	}
	userAgent := cfg.FetchConfig.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Fetcher{
		transport: NewTransport(cfg.HTTPClientConfig),
		limiter:   rate.NewLimiter(limit, burst),
		retry:     cfg.RetryConfig,
		httpCfg:   cfg.HTTPClientConfig,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch загружает страницу и возвращает её текст в UTF-8.
// Итоговая ошибка оборачивает model.ErrFetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var page string
	err := WithRetry(ctx, f.logger, f.retry, func() error {
		body, err := f.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		page, err = DecodeBody(body)
		if err != nil {
			return Permanent(err)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch %s: %w", url, ctxErr)
		}
		return "", fmt.Errorf("%w: %s: %w", model.ErrFetchFailure, url, err)
	}
	return page, nil
}

// Requests возвращает количество выполненных HTTP запросов
func (f *Fetcher) Requests() int64 {
	return f.requests.Load()
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var (
		body   []byte
		status int
	)

	collector := f.newCollector(ctx)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	f.requests.Add(1)
	if err := collector.Visit(url); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isPermanentStatus(status) {
			return nil, Permanent(fmt.Errorf("unexpected status code %d: %w", status, err))
		}
		return nil, fmt.Errorf("request failed (status %d): %w", status, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}
	return body, nil
}

// newCollector создает collector для одного запроса.
func (f *Fetcher) newCollector(ctx context.Context) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)

	// Используем общий HTTP транспорт
	collector.WithTransport(f.transport)
	if f.httpCfg.RequestTimeout > 0 {
		collector.SetRequestTimeout(f.httpCfg.RequestTimeout)
	}

	collector.OnRequest(func(r *colly.Request) {
		f.logger.Debug("Making request", zap.String("url", r.URL.String()))
	})

	collector.OnResponse(func(r *colly.Response) {
		f.logger.Debug("Received response",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status", r.StatusCode),
			zap.Int("size", len(r.Body)))
	})

	return collector
}

// isPermanentStatus сообщает, что ответ не изменится при повторе
func isPermanentStatus(status int) bool {
	return status >= 400 && status < 500 &&
		status != http.StatusRequestTimeout &&
		status != http.StatusTooManyRequests
}

// DecodeBody приводит страницу к UTF-8. Если сервер объявил кодировку,
// colly уже перекодировал тело; иначе невалидный UTF-8 считается windows-1251.
func DecodeBody(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode windows-1251 page: %w", err)
	}
	return string(decoded), nil
}
