// Package platform は各コンテストプラットフォームのアダプタを提供する。
// アダプタはアップストリームAPIの固有フォーマットを正規化済みの
// model.ParsedContestに変換する。HTTPリトライ・タイムアウト・レート制限は
// 共有のClientヘルパーに委譲し、アダプタ自身はステートレスに保つ。
package platform

import (
	"context"

	"github.com/hitoshi/contestman/internal/model"
)

// Adapter はプラットフォームアダプタの共通インターフェース。
// 各アダプタは独立しており、1つのアダプタの失敗が他に波及してはならない。
type Adapter interface {
	// Name はアダプタが担当するプラットフォームを返す。
	Name() model.Platform

	// FetchContests はアップストリームからコンテスト一覧を取得し、
	// 正規化済みのParsedContestに変換して返す。
	// アップストリーム障害時はエラーを返し、共有状態は一切変更しない。
	FetchContests(ctx context.Context) ([]model.ParsedContest, error)

	// HealthCheck はアップストリームAPIへの疎通を確認する。
	HealthCheck(ctx context.Context) error
}

// Registry は有効化されたアダプタの名前付き集合。
// DIコンテナに頼らず、明示的なコンストラクタ呼び出しで構築する。
type Registry struct {
	adapters []Adapter
	byName   map[model.Platform]Adapter
}

// NewRegistry は指定アダプタ群からRegistryを生成する。
// 呼び出し元が有効なアダプタのみを渡す責務を持つ。
func NewRegistry(adapters ...Adapter) *Registry {
	byName := make(map[model.Platform]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Registry{
		adapters: adapters,
		byName:   byName,
	}
}

// Get は指定プラットフォームのアダプタを返す。未登録の場合はfalseを返す。
func (r *Registry) Get(name model.Platform) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// All は登録順のアダプタ一覧を返す。
func (r *Registry) All() []Adapter {
	return r.adapters
}

// Platforms は登録済みプラットフォーム名の一覧を登録順で返す。
func (r *Registry) Platforms() []model.Platform {
	names := make([]model.Platform, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}
