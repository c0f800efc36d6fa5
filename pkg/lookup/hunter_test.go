package lookup_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-charity-scraper/pkg/lookup"
	"github.com/shouni/go-charity-scraper/pkg/types"
)

// MockFetcher は lookup.Fetcher インターフェースのモックです。
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

const testKey = "test-key"

func TestNewClient(t *testing.T) {
	t.Run("nil fetcher", func(t *testing.T) {
		c, err := lookup.NewClient(nil, testKey)
		assert.Error(t, err)
		assert.Nil(t, c)
		assert.Contains(t, err.Error(), "Fetcher cannot be nil")
	})

	t.Run("empty api key", func(t *testing.T) {
		c, err := lookup.NewClient(new(MockFetcher), "")
		assert.Error(t, err)
		assert.Nil(t, c)
	})
}

func TestLookup(t *testing.T) {
	testCases := []struct {
		name      string
		website   string
		host      string
		body      string
		fetchErr  error
		expected  string
		outcome   lookup.Outcome
		noRequest bool
	}{
		{
			name:     "最初のメールアドレスを返す",
			website:  "https://orgb.example.org",
			host:     "orgb.example.org",
			body:     `{"data":{"domain":"orgb.example.org","emails":[{"value":"info@orgb.example.org"},{"value":"ceo@orgb.example.org"}]}}`,
			expected: "info@orgb.example.org",
			outcome:  lookup.OutcomeFound,
		},
		{
			name:     "パスとポートを含むURL",
			website:  "https://WWW.Example.org:8443/about?x=1",
			host:     "www.example.org",
			body:     `{"data":{"emails":[{"value":"hello@example.org"}]}}`,
			expected: "hello@example.org",
			outcome:  lookup.OutcomeFound,
		},
		{
			name:     "空のリスト",
			website:  "https://orga.example.org",
			host:     "orga.example.org",
			body:     `{"data":{"emails":[]}}`,
			expected: types.NotFound,
			outcome:  lookup.OutcomeNotFound,
		},
		{
			name:     "最初の値が空",
			website:  "https://orga.example.org",
			host:     "orga.example.org",
			body:     `{"data":{"emails":[{"value":""}]}}`,
			expected: types.NotFound,
			outcome:  lookup.OutcomeNotFound,
		},
		{
			name:     "タイムアウト",
			website:  "https://slow.example.org",
			host:     "slow.example.org",
			fetchErr: context.DeadlineExceeded,
			expected: types.NotFound,
			outcome:  lookup.OutcomeError,
		},
		{
			name:     "2xx以外のステータス",
			website:  "https://orgc.example.org",
			host:     "orgc.example.org",
			fetchErr: errors.New("HTTPクライアントエラー (非リトライ対象): ステータスコード 401"),
			expected: types.NotFound,
			outcome:  lookup.OutcomeError,
		},
		{
			name:     "不正なJSON",
			website:  "https://orgd.example.org",
			host:     "orgd.example.org",
			body:     `<html>gateway</html>`,
			expected: types.NotFound,
			outcome:  lookup.OutcomeError,
		},
		{
			name:      "ホストなし",
			website:   "https://",
			expected:  types.NotFound,
			outcome:   lookup.OutcomeError,
			noRequest: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(MockFetcher)
			if !tc.noRequest {
				expectedURL := fmt.Sprintf("%s/v2/domain-search?api_key=%s&domain=%s", lookup.DefaultBaseURL, testKey, url.QueryEscape(tc.host))
				var body []byte
				if tc.body != "" {
					body = []byte(tc.body)
				}
				fetcher.On("FetchBytes", mock.Anything, expectedURL).Return(body, tc.fetchErr).Once()
			}

			var outcomes []lookup.Outcome
			client, err := lookup.NewClient(fetcher, testKey, lookup.WithObserver(func(o lookup.Outcome) {
				outcomes = append(outcomes, o)
			}))
			require.NoError(t, err)

			actual := client.Lookup(context.Background(), tc.website)

			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, []lookup.Outcome{tc.outcome}, outcomes)
			fetcher.AssertExpectations(t)
			if tc.noRequest {
				fetcher.AssertNotCalled(t, "FetchBytes", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestLookup_CustomBaseURL(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchBytes", mock.Anything, "http://127.0.0.1:9999/v2/domain-search?api_key=test-key&domain=example.org").
		Return([]byte(`{"data":{"emails":[{"value":"a@example.org"}]}}`), nil).Once()

	client, err := lookup.NewClient(fetcher, testKey, lookup.WithBaseURL("http://127.0.0.1:9999/"))
	require.NoError(t, err)

	assert.Equal(t, "a@example.org", client.Lookup(context.Background(), "example.org"))
	fetcher.AssertExpectations(t)
}

func TestLookup_RedactsAPIKey(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchBytes", mock.Anything, mock.Anything).
		Return(nil, errors.New("GET https://api.hunter.io/v2/domain-search?api_key=test-key failed")).Once()

	client, err := lookup.NewClient(fetcher, testKey)
	require.NoError(t, err)

	assert.Equal(t, types.NotFound, client.Lookup(context.Background(), "https://example.org"))
}

func TestHostOf(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{input: "https://orgb.example.org", expected: "orgb.example.org"},
		{input: "http://example.org./path", expected: "example.org"},
		{input: "example.org", expected: "example.org"},
		{input: "https://bücher.example", expected: "xn--bcher-kva.example"},
		{input: types.NotFound, wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			host, err := lookup.HostOf(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, host)
		})
	}
}
