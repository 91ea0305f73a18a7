package config

const (
	redisURLVar       = "REDIS_URL"
	redisNamespaceVar = "REDIS_NAMESPACE"
)

type Stores struct{}

var _ StoreConfig = Stores{}

func (Stores) GetRedisURL() string {
	return GetEnv(redisURLVar, "")
}

func (Stores) GetRedisNamespace() string {
	return GetEnv(redisNamespaceVar, "clinic-auth")
}
