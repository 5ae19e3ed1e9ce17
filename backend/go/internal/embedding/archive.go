package embedding

import (
	"AskArchive/backend/go/pkg/util"
	"context"
	"fmt"
)

// ArchiveEmbedder 把 Embedding 适配为归档流水线使用的批量接口。
// 单条文本（检索时的问题）会经过 LRU 缓存，批量文本（写入时的分块）直接请求模型。
type ArchiveEmbedder struct {
	model Embedding
	cache *util.LRUCache[string, []float32]
}

// NewArchiveEmbedder 创建适配器。cacheSize 为 0 时不缓存。
func NewArchiveEmbedder(model Embedding, cacheSize int) (*ArchiveEmbedder, error) {
	e := &ArchiveEmbedder{model: model}
	if cacheSize > 0 {
		cache, err := util.NewWithConfig(util.CacheConfig[string, []float32]{Capacity: cacheSize})
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// Embed 返回与 texts 一一对应的向量，数量不符时整体失败。
func (e *ArchiveEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) == 1 {
		vec, err := e.embedOne(ctx, texts[0])
		if err != nil {
			return nil, err
		}
		return [][]float32{vec}, nil
	}

	vectors, err := e.model.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding model returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *ArchiveEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if vec, ok := e.cache.Get(text); ok {
			return vec, nil
		}
	}
	vec, err := e.model.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding model returned an empty vector")
	}
	if e.cache != nil {
		e.cache.Put(text, vec, 1)
	}
	return vec, nil
}
