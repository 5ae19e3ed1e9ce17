package milvus

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error

	log = logger.New("milvus", "", "")
)

// 归档集合的字段名。
const (
	FieldID          = "id"
	FieldNamespace   = "namespace"
	FieldUserID      = "user_id"
	FieldSource      = "source"
	FieldSourceType  = "source_type"
	FieldDisplayName = "display_name"
	FieldText        = "text"
	FieldStart       = "start"
	FieldEnd         = "end"
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client        // Milvus 客户端实例。
	Config *config.MilvusConfig // Milvus 配置。
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		// 使用配置中的地址创建 Milvus 客户端。
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Info("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 在关闭连接前刷新一次集合，确保最近写入的分块落盘。
func (c *MilvusClient) Close(ctx context.Context) {
	if c.Client == nil {
		return
	}
	if err := c.FlushCollection(ctx); err != nil {
		log.Warn(err.Error())
	}
	c.Client.Close()
	log.Info("ℹ️ 已安全关闭 Milvus 连接。")
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// FlushCollection 手动触发一次刷新操作，将内存中的数据写入磁盘。
func (c *MilvusClient) FlushCollection(ctx context.Context) error {
	collName := c.Config.Schema.CollectionName
	if err := c.Client.Flush(ctx, collName, false); err != nil {
		return fmt.Errorf("刷新集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

// ArchiveFields 返回归档集合的默认字段定义。
// namespace 作为普通 VarChar 字段保存，以便用表达式按用户过滤。
func ArchiveFields(dim int, vectorField string) []config.FieldConfig {
	return []config.FieldConfig{
		{Name: FieldID, DataType: "VarChar", IsPrimaryKey: true, MaxLength: 512},
		{Name: FieldNamespace, DataType: "VarChar", MaxLength: 256},
		{Name: FieldUserID, DataType: "VarChar", MaxLength: 256},
		{Name: FieldSource, DataType: "VarChar", MaxLength: 512},
		{Name: FieldSourceType, DataType: "VarChar", MaxLength: 16},
		{Name: FieldDisplayName, DataType: "VarChar", MaxLength: 1024},
		{Name: FieldText, DataType: "VarChar", MaxLength: 65535},
		{Name: FieldStart, DataType: "Double"},
		{Name: FieldEnd, DataType: "Double"},
		{Name: vectorField, DataType: "FloatVector", Dim: dim},
	}
}

// EnsureCollection 确保 Milvus 集合存在并加载到内存。
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	collName := c.Config.Schema.CollectionName
	exists, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}
	if !exists {
		fields := c.Config.Schema.Fields
		if len(fields) == 0 {
			fields = ArchiveFields(c.Config.Dim, c.Config.Schema.VectorField)
		}
		schemaFields := make([]*entity.Field, 0, len(fields))
		for _, fieldCfg := range fields {
			field, err := buildField(fieldCfg)
			if err != nil {
				return err
			}
			schemaFields = append(schemaFields, field)
		}

		schema := entity.NewSchema().
			WithName(collName).
			WithDescription(c.Config.Schema.Description)
		for _, field := range schemaFields {
			schema = schema.WithField(field)
		}

		if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("创建集合失败: %w", err)
		}
		idx, err := c.buildIndexFromConfig()
		if err != nil {
			return err
		}
		if err := c.Client.CreateIndex(ctx, collName, c.Config.Schema.Index.FieldName, idx, false); err != nil {
			return fmt.Errorf("为字段 '%s' 创建索引失败: %w", c.Config.Schema.Index.FieldName, err)
		}
		log.WithField("collection", collName).Info("✅ 已创建 Milvus 集合")
	}

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return fmt.Errorf("加载 Milvus 集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

func buildField(fieldCfg config.FieldConfig) (*entity.Field, error) {
	field := entity.NewField().WithName(fieldCfg.Name)
	if fieldCfg.IsPrimaryKey {
		field = field.WithIsPrimaryKey(true)
	}
	if fieldCfg.IsAutoID {
		field = field.WithIsAutoID(true)
	}

	switch fieldCfg.DataType {
	case "Int64":
		field = field.WithDataType(entity.FieldTypeInt64)
	case "VarChar":
		field = field.WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(fieldCfg.MaxLength))
	case "FloatVector":
		field = field.WithDataType(entity.FieldTypeFloatVector).WithDim(int64(fieldCfg.Dim))
	case "Float":
		field = field.WithDataType(entity.FieldTypeFloat)
	case "Double":
		field = field.WithDataType(entity.FieldTypeDouble)
	case "Bool":
		field = field.WithDataType(entity.FieldTypeBool)
	default:
		return nil, fmt.Errorf("不支持的数据类型: %s", fieldCfg.DataType)
	}
	return field, nil
}

// MetricType 返回索引使用的相似度度量。
func (c *MilvusClient) MetricType() entity.MetricType {
	return entity.MetricType(c.Config.Schema.Index.MetricType)
}

// buildIndexFromConfig 是一个辅助函数，用于从配置构建索引实体。
func (c *MilvusClient) buildIndexFromConfig() (entity.Index, error) {
	indexCfg := c.Config.Schema.Index
	metricType := entity.MetricType(indexCfg.MetricType)

	switch indexCfg.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlat(metricType, intParam(indexCfg.Params, "nlist", 128))
	case "HNSW":
		return entity.NewIndexHNSW(metricType, intParam(indexCfg.Params, "M", 8), intParam(indexCfg.Params, "efConstruction", 96))
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEX(metricType)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", indexCfg.IndexType)
	}
}

// SearchParam 返回与索引类型匹配的搜索参数。
func (c *MilvusClient) SearchParam(topK int) (entity.SearchParam, error) {
	indexCfg := c.Config.Schema.Index
	switch indexCfg.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlatSearchParam(intParam(indexCfg.Params, "nprobe", 10))
	case "HNSW":
		ef := intParam(indexCfg.Params, "ef", 64)
		if ef < topK {
			ef = topK
		}
		return entity.NewIndexHNSWSearchParam(ef)
	default:
		return entity.NewIndexAUTOINDEXSearchParam(1)
	}
}

// intParam 读取 YAML 解析出的整数参数，不存在时返回默认值。
func intParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key].(int)
	if !ok {
		return def
	}
	return v
}
