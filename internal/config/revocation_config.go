package config

type RevocationConfig interface {
	GetRevocationBackend() RevocationBackend
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type RevocationBackend string

const (
	RevocationBackendMemory RevocationBackend = "memory"
	RevocationBackendRedis  RevocationBackend = "redis"
)

type RevocationSettings struct {
	Backend        RevocationBackend `toml:"backend"`
	RedisAddr      string            `toml:"redis_addr"`
	RedisPassword  string            `toml:"redis_password"`
	RedisDB        int               `toml:"redis_db"`
	RedisKeyPrefix string            `toml:"redis_key_prefix"`
}

func (c mainConfig) GetRevocationBackend() RevocationBackend {
	return c.s.Revocation.Backend
}

func (c mainConfig) GetRedisAddr() string {
	return c.s.Revocation.RedisAddr
}

func (c mainConfig) GetRedisPassword() string {
	return c.s.Revocation.RedisPassword
}

func (c mainConfig) GetRedisDB() int {
	return c.s.Revocation.RedisDB
}

func (c mainConfig) GetRedisKeyPrefix() string {
	return c.s.Revocation.RedisKeyPrefix
}
