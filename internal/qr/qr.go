package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

// PickupPass is the payload encoded into the counter QR for pickup orders.
type PickupPass struct {
	OrderNumber  string    `json:"order_number"`
	CustomerName string    `json:"customer_name"`
	IssuedAt     time.Time `json:"issued_at"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// EncodePickupPass encrypts the pass into the string embedded in the QR
// image, which is what a counter scanner hands back.
func (g *Generator) EncodePickupPass(pass PickupPass) (string, error) {
	data, err := json.Marshal(pass)
	if err != nil {
		return "", err
	}
	return encryptAES(data, g.secret)
}

// GeneratePickupQR encrypts the pass and renders it as a 256px PNG.
func (g *Generator) GeneratePickupQR(pass PickupPass) ([]byte, error) {
	encrypted, err := g.EncodePickupPass(pass)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecodePickupPass reverses GeneratePickupQR's payload encoding. It is what
// the counter scanner endpoint calls on the scanned string.
func (g *Generator) DecodePickupPass(encoded string) (PickupPass, error) {
	var pass PickupPass

	data, err := decryptAES(encoded, g.secret)
	if err != nil {
		return pass, err
	}
	if err := json.Unmarshal(data, &pass); err != nil {
		return pass, err
	}
	return pass, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, ciphertext[aes.BlockSize:])

	return data, nil
}
