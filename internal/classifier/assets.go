package classifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

// modelAssetBaseURL は学習済み難易度判定モデルの配布元。
const modelAssetBaseURL = "https://github.com/vgentile98/text_difficulty_prediction/raw/main/app/"

// DefaultModelAssets は推論サイドカーが読み込むモデル設定・重みファイルの一覧。
// キーは保存先ファイル名、値はダウンロード元URL。
func DefaultModelAssets() map[string]string {
	return map[string]string{
		"config.json":             modelAssetBaseURL + "config.json",
		"tokenizer_config.json":   modelAssetBaseURL + "tokenizer_config.json",
		"special_tokens_map.json": modelAssetBaseURL + "special_tokens_map.json",
		"added_tokens.json":       modelAssetBaseURL + "added_tokens.json",
		"model.safetensors":       modelAssetBaseURL + "model.safetensors",
		"sentencepiece.bpe.model": modelAssetBaseURL + "sentencepiece.bpe.model",
	}
}

// Provisioner はモデルファイルをローカルディレクトリに用意する。
type Provisioner struct {
	dir        string
	assets     map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProvisioner はProvisionerを生成する。
func NewProvisioner(dir string, assets map[string]string, httpClient *http.Client, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		dir:        dir,
		assets:     assets,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Ensure は未取得のファイルのみダウンロードする。
// 1件でも失敗した場合はエラーを返す（呼び出し元はセットアップ失敗として扱う）。
// 書き込みは一時ファイル経由で行い、途中で失敗したファイルを残さない。
func (p *Provisioner) Ensure(ctx context.Context) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	names := make([]string, 0, len(p.assets))
	for name := range p.assets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dest := filepath.Join(p.dir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		p.logger.Info("downloading model asset",
			slog.String("file", name),
			slog.String("dir", p.dir),
		)
		if err := p.download(ctx, p.assets[name], dest); err != nil {
			return fmt.Errorf("failed to download %s: %w", name, err)
		}
	}

	return nil
}

func (p *Provisioner) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	return os.Rename(tmp.Name(), dest)
}
