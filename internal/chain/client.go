package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/wozhendeai/grip-sub002/internal/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// 稳定币合约ABI（只保留支付需要的方法）
const tokenABI = `[
	{
		"constant": true,
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "memo", "type": "bytes32"}
		],
		"name": "transferWithMemo",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

// Client 链RPC客户端：余额读取、nonce读取、原始交易广播、确认查询
type Client struct {
	eth           *ethclient.Client
	rpc           *rpc.Client
	tokenABI      abi.ABI
	chainID       *big.Int
	network       string
	backendWallet common.Address
	confirmations int
}

func Init(cfg config.ChainConfig) (*Client, error) {
	rpcClient, err := rpc.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain rpc: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	return &Client{
		eth:           ethclient.NewClient(rpcClient),
		rpc:           rpcClient,
		tokenABI:      parsedABI,
		chainID:       big.NewInt(cfg.ChainId),
		network:       cfg.Network,
		backendWallet: common.HexToAddress(cfg.BackendWallet),
		confirmations: cfg.Confirmations,
	}, nil
}

// ChainID 链ID
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Network 网络名称 (mainnet, testnet)。签名路径必须显式传递，
// 不允许隐式读全局状态
func (c *Client) Network() string {
	return c.network
}

// BackendWallet 后端签名钱包地址
func (c *Client) BackendWallet() common.Address {
	return c.backendWallet
}

// TokenBalance 读取指定代币的链上余额
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := c.tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	result, err := c.eth.CallContract(ctx, callMsg(token, data), nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	out, err := c.tokenABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", out[0])
	}
	return balance, nil
}

// PendingNonce 读取地址的pending nonce
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("read pending nonce: %w", err)
	}
	return nonce, nil
}

// TransferCallData 构造 transferWithMemo 调用数据
func (c *Client) TransferCallData(to common.Address, amount *big.Int, memo [32]byte) ([]byte, error) {
	data, err := c.tokenABI.Pack("transferWithMemo", to, amount, memo)
	if err != nil {
		return nil, fmt.Errorf("pack transferWithMemo: %w", err)
	}
	return data, nil
}

// BroadcastRaw 广播已签名的原始交易字节
func (c *Client) BroadcastRaw(ctx context.Context, raw []byte) (common.Hash, error) {
	var result string
	if err := c.rpc.CallContext(ctx, &result, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast transaction: %w", err)
	}
	return common.HexToHash(result), nil
}

// LatestBlock 最新区块号
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("read latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// ConfirmationStatus 交易确认状态
type ConfirmationStatus int

const (
	ConfirmationPending  ConfirmationStatus = iota // 未上链或确认数不足
	ConfirmationAccepted                           // 已确认成功
	ConfirmationReverted                           // 交易执行失败
)

// CheckConfirmation 查询交易确认状态
func (c *Client) CheckConfirmation(ctx context.Context, txHash common.Hash) (ConfirmationStatus, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		// 节点还没收录时返回 not found，视作pending
		if strings.Contains(err.Error(), "not found") {
			return ConfirmationPending, nil
		}
		return ConfirmationPending, fmt.Errorf("read receipt: %w", err)
	}
	if receipt.Status == 0 {
		return ConfirmationReverted, nil
	}

	latest, err := c.LatestBlock(ctx)
	if err != nil {
		return ConfirmationPending, err
	}
	if latest < receipt.BlockNumber.Uint64()+uint64(c.confirmations) {
		return ConfirmationPending, nil
	}
	return ConfirmationAccepted, nil
}

func callMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}
