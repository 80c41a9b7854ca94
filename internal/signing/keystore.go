package signing

import (
	"context"
	"fmt"
	"sync"
)

// LocalKeyStore 进程内托管钱包密钥库。生产环境应换成 KMS 实现，
// keyRef 即可指向外部密钥。
type LocalKeyStore struct {
	mu   sync.Mutex
	keys map[string]*LocalHSM
}

// NewLocalKeyStore 创建本地密钥库
func NewLocalKeyStore() *LocalKeyStore {
	return &LocalKeyStore{keys: make(map[string]*LocalHSM)}
}

// CreateWallet 生成一个新托管钱包，返回地址与密钥引用
func (s *LocalKeyStore) CreateWallet(ctx context.Context) (string, string, error) {
	hsm, err := GenerateLocalHSM()
	if err != nil {
		return "", "", fmt.Errorf("generate custodial key: %w", err)
	}
	address := hsm.Address().Hex()
	keyRef := "local:" + address

	s.mu.Lock()
	s.keys[keyRef] = hsm
	s.mu.Unlock()

	return address, keyRef, nil
}

// HSMFor 按引用取回签名器
func (s *LocalKeyStore) HSMFor(keyRef string) (HSM, error) {
	s.mu.Lock()
	hsm, ok := s.keys[keyRef]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown key ref %q", keyRef)
	}
	return hsm, nil
}
