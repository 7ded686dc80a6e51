// Package crypto implements the @lmb/crypto binding (C9): base64
// encode/decode, crc32/md5/sha1/sha256/sha384/sha512 hashes and their
// hmac variants, and aes-cbc/des-cbc/des-ecb encrypt/decrypt — all over
// stdlib crypto/*, hash/crc32, and encoding/{base64,hex}. No pack example
// wires a crypto library beyond the stdlib primitives the teacher itself
// uses for MD5 checksums (lode/client.go's computeMD5), so this binding
// stays stdlib-only throughout, documented in DESIGN.md.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"hash/crc32"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
)

// Loader returns the @lmb/crypto module loader.
func Loader() sandbox.ModuleLoader {
	return func(L *lua.LState) lua.LValue {
		mod := L.NewTable()
		mod.RawSetString("base64_encode", L.NewFunction(luaBase64Encode))
		mod.RawSetString("base64_decode", L.NewFunction(luaBase64Decode))
		mod.RawSetString("crc32", L.NewFunction(luaCRC32))
		mod.RawSetString("md5", L.NewFunction(hashFn(md5.New)))
		mod.RawSetString("sha1", L.NewFunction(hashFn(sha1.New)))
		mod.RawSetString("sha256", L.NewFunction(hashFn(sha256.New)))
		mod.RawSetString("sha384", L.NewFunction(hashFn(sha512.New384)))
		mod.RawSetString("sha512", L.NewFunction(hashFn(sha512.New)))
		mod.RawSetString("hmac", L.NewFunction(luaHMAC))
		mod.RawSetString("encrypt", L.NewFunction(luaEncrypt))
		mod.RawSetString("decrypt", L.NewFunction(luaDecrypt))
		return mod
	}
}

func luaBase64Encode(L *lua.LState) int {
	s := L.CheckString(1)
	L.Push(lua.LString(base64.StdEncoding.EncodeToString([]byte(s))))
	return 1
}

func luaBase64Decode(L *lua.LState) int {
	s := L.CheckString(1)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindCryptoParam, "base64_decode", err))
		return 0
	}
	L.Push(lua.LString(string(b)))
	return 1
}

func luaCRC32(L *lua.LState) int {
	s := L.CheckString(1)
	sum := crc32.ChecksumIEEE([]byte(s))
	L.Push(lua.LString(hex.EncodeToString([]byte{
		byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum),
	})))
	return 1
}

// hashFn builds an LGFunction computing newHash() over the single string
// argument, returned as lowercase hex.
func hashFn(newHash func() hash.Hash) lua.LGFunction {
	return func(L *lua.LState) int {
		s := L.CheckString(1)
		h := newHash()
		_, _ = h.Write([]byte(s))
		L.Push(lua.LString(hex.EncodeToString(h.Sum(nil))))
		return 1
	}
}

func hashNewFor(algo string) (func() hash.Hash, bool) {
	switch algo {
	case "md5":
		return md5.New, true
	case "sha1":
		return sha1.New, true
	case "sha256":
		return sha256.New, true
	case "sha384":
		return sha512.New384, true
	case "sha512":
		return sha512.New, true
	default:
		return nil, false
	}
}

// luaHMAC implements hmac(algo, data, key).
func luaHMAC(L *lua.LState) int {
	algo := L.CheckString(1)
	data := L.CheckString(2)
	key := L.CheckString(3)

	newHash, ok := hashNewFor(algo)
	if !ok {
		raiseLmbErr(L, lmberr.New(lmberr.KindCryptoParam, "unknown hmac algorithm: "+algo))
		return 0
	}
	mac := hmac.New(newHash, []byte(key))
	_, _ = mac.Write([]byte(data))
	L.Push(lua.LString(hex.EncodeToString(mac.Sum(nil))))
	return 1
}

// luaEncrypt implements encrypt(algo, data, key, iv?) for aes-cbc,
// des-cbc, des-ecb, returning lowercase hex.
func luaEncrypt(L *lua.LState) int {
	algo := L.CheckString(1)
	data := []byte(L.CheckString(2))
	key := []byte(L.CheckString(3))
	iv := optionalIV(L)

	out, err := blockCipherTransform(algo, data, key, iv, true)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindCryptoParam, "encrypt", err))
		return 0
	}
	L.Push(lua.LString(hex.EncodeToString(out)))
	return 1
}

// luaDecrypt implements decrypt(algo, data, key, iv?); data is accepted
// as hex.
func luaDecrypt(L *lua.LState) int {
	algo := L.CheckString(1)
	dataHex := L.CheckString(2)
	key := []byte(L.CheckString(3))
	iv := optionalIV(L)

	data, err := hex.DecodeString(dataHex)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindCryptoParam, "decrypt: invalid hex", err))
		return 0
	}

	out, err := blockCipherTransform(algo, data, key, iv, false)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindCryptoParam, "decrypt", err))
		return 0
	}
	L.Push(lua.LString(hex.EncodeToString(out)))
	return 1
}

func optionalIV(L *lua.LState) []byte {
	if L.GetTop() < 4 {
		return nil
	}
	if s, ok := L.Get(4).(lua.LString); ok {
		return []byte(s)
	}
	return nil
}

func newBlock(algo string, key []byte) (cipher.Block, error) {
	switch algo {
	case "aes-cbc":
		return aes.NewCipher(key)
	case "des-cbc", "des-ecb":
		return des.NewCipher(key)
	default:
		return nil, lmberr.New(lmberr.KindCryptoParam, "unknown cipher algorithm: "+algo)
	}
}

// blockCipherTransform pads with PKCS#7 on encrypt and strips it on
// decrypt, matching the fixed-block-size contract every listed algorithm
// shares.
func blockCipherTransform(algo string, data, key, iv []byte, encrypt bool) ([]byte, error) {
	block, err := newBlock(algo, key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()

	if encrypt {
		data = pkcs7Pad(data, bs)
	} else if len(data)%bs != 0 {
		return nil, lmberr.New(lmberr.KindCryptoParam, "ciphertext is not a multiple of the block size")
	}

	out := make([]byte, len(data))

	switch algo {
	case "aes-cbc", "des-cbc":
		if len(iv) != bs {
			return nil, lmberr.New(lmberr.KindCryptoParam, "iv must be exactly the cipher's block size")
		}
		if encrypt {
			cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
		} else {
			cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
		}
	case "des-ecb":
		for off := 0; off < len(data); off += bs {
			if encrypt {
				block.Encrypt(out[off:off+bs], data[off:off+bs])
			} else {
				block.Decrypt(out[off:off+bs], data[off:off+bs])
			}
		}
	}

	if !encrypt {
		out, err = pkcs7Unpad(out, bs)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, lmberr.New(lmberr.KindCryptoParam, "invalid padded ciphertext length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, lmberr.New(lmberr.KindCryptoParam, "invalid pkcs7 padding")
	}
	return data[:len(data)-padLen], nil
}

func raiseLmbErr(L *lua.LState, err *lmberr.Error) {
	L.RaiseError("%s: %s", err.Kind, err.Message)
}
