package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wudi/pdfviewer/ir/raw"
)

// ErrPasswordRequired is returned when a document cannot be opened with the
// empty user password. The viewer never prompts for one.
var ErrPasswordRequired = errors.New("document requires a password")

type Permissions struct{ Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool }

// DataClass identifies the kind of payload being decrypted.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
)

// Handler decrypts strings and streams of one document.
type Handler interface {
	IsEncrypted() bool
	Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error)
	Permissions() Permissions
	EncryptMetadata() bool
}

type HandlerBuilder struct {
	encryptDict *raw.DictObj
	fileID      []byte
}

func (b *HandlerBuilder) WithEncryptDict(d *raw.DictObj) *HandlerBuilder {
	b.encryptDict = d
	return b
}

// WithTrailer takes the file identifier from the trailer's /ID array.
func (b *HandlerBuilder) WithTrailer(d *raw.DictObj) *HandlerBuilder {
	if arrObj, ok := d.Get("ID"); ok {
		if arr, ok := arrObj.(*raw.ArrayObj); ok && arr.Len() > 0 {
			if s, ok := arr.Items[0].(raw.StringObj); ok && len(b.fileID) == 0 {
				b.fileID = s.Value()
			}
		}
	}
	return b
}

func (b *HandlerBuilder) WithFileID(id []byte) *HandlerBuilder { b.fileID = id; return b }

// Build validates the encryption dictionary and authenticates with the empty
// user password.
func (b *HandlerBuilder) Build() (Handler, error) {
	if b.encryptDict == nil {
		return noEncryptionHandler{}, nil
	}
	if name := b.encryptDict.Name("Filter"); name != "" && name != "Standard" {
		return nil, fmt.Errorf("unsupported security handler %s", name)
	}
	v := b.encryptDict.Int("V", 0)
	if v == 0 {
		v = 1
	}
	if v == 3 || v > 5 {
		return nil, fmt.Errorf("encryption V=%d not supported", v)
	}
	r := b.encryptDict.Int("R", 2)
	if r < 2 || r > 6 {
		return nil, fmt.Errorf("encryption R=%d not supported", r)
	}
	keyLen := 40
	if v >= 5 {
		keyLen = 256
	}
	if n := b.encryptDict.Int("Length", 0); n > 0 && v < 5 {
		keyLen = int(n)
	}
	if v == 4 {
		keyLen = 128
	}
	if keyLen%8 != 0 || keyLen < 40 {
		return nil, errors.New("encryption length must be a multiple of 8")
	}
	encryptMeta := true
	if bv, ok := b.encryptDict.Get("EncryptMetadata"); ok {
		if bo, ok := bv.(raw.BoolObj); ok {
			encryptMeta = bo.V
		}
	}

	baseAlgo := algoRC4
	if v >= 5 {
		baseAlgo = algoAES
	}
	cryptFilters, err := parseCryptFilters(b.encryptDict, baseAlgo)
	if err != nil {
		return nil, err
	}
	h := &standardHandler{
		v:            int(v),
		r:            int(r),
		lengthBits:   keyLen,
		owner:        stringBytes(b.encryptDict, "O"),
		user:         stringBytes(b.encryptDict, "U"),
		oe:           stringBytes(b.encryptDict, "OE"),
		ue:           stringBytes(b.encryptDict, "UE"),
		perms:        stringBytes(b.encryptDict, "Perms"),
		p:            int32(b.encryptDict.Int("P", 0)),
		fileID:       b.fileID,
		encryptMeta:  encryptMeta,
		cryptFilters: cryptFilters,
	}
	if v >= 4 {
		if h.streamAlgo, err = resolveCryptFilter(b.encryptDict, "StmF", cryptFilters); err != nil {
			return nil, err
		}
		if h.stringAlgo, err = resolveCryptFilter(b.encryptDict, "StrF", cryptFilters); err != nil {
			return nil, err
		}
	} else {
		h.streamAlgo, h.stringAlgo = algoRC4, algoRC4
	}
	if err := h.authenticate(nil); err != nil {
		return nil, err
	}
	return h, nil
}

type cryptAlgo int

const (
	algoUnset cryptAlgo = iota
	algoNone
	algoRC4
	algoAES
)

type standardHandler struct {
	key          []byte
	v            int
	r            int
	lengthBits   int
	owner        []byte
	user         []byte
	oe           []byte
	ue           []byte
	perms        []byte
	p            int32
	fileID       []byte
	encryptMeta  bool
	streamAlgo   cryptAlgo
	stringAlgo   cryptAlgo
	cryptFilters map[string]cryptAlgo
}

func (h *standardHandler) IsEncrypted() bool     { return true }
func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

func (h *standardHandler) authenticate(pwd []byte) error {
	if h.r >= 5 {
		return h.authenticateAES256(pwd)
	}
	key := deriveKey(pwd, h.owner, h.p, h.fileID, h.lengthBits/8, h.r, h.encryptMeta)
	if !checkUserPassword(key, h.user, h.fileID, h.r) {
		return ErrPasswordRequired
	}
	h.key = key
	return nil
}

func (h *standardHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return h.DecryptWithFilter(objNum, gen, data, class, "")
}

func (h *standardHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	if class == DataClassMetadataStream && !h.encryptMeta {
		return data, nil
	}
	algo, err := h.algoFor(class, cryptFilter)
	if err != nil {
		return nil, err
	}
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesDecrypt(key, data)
	}
	return rc4Crypt(key, data)
}

func (h *standardHandler) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	switch filter {
	case "Identity":
		return algoNone, nil
	case "", "Standard":
		if class == DataClassString {
			return h.stringAlgo, nil
		}
		return h.streamAlgo, nil
	}
	if algo, ok := h.cryptFilters[filter]; ok {
		return algo, nil
	}
	return algoUnset, fmt.Errorf("crypt filter %s not defined", filter)
}

func (h *standardHandler) Permissions() Permissions {
	return Permissions{
		Print:             h.p&0x4 != 0,
		Modify:            h.p&0x8 != 0,
		Copy:              h.p&0x10 != 0,
		ModifyAnnotations: h.p&0x20 != 0,
		FillForms:         h.p&0x100 != 0,
		ExtractAccessible: h.p&0x200 != 0,
		Assemble:          h.p&0x400 != 0,
		PrintHighQuality:  h.p&0x800 != 0,
	}
}

func (h *standardHandler) authenticateAES256(pwd []byte) error {
	if key, ok := deriveAES256(pwd, h.user, h.ue, nil, h.r); ok {
		h.key = key
	} else if len(h.user) >= 48 {
		if key, ok := deriveAES256(pwd, h.owner, h.oe, h.user[:48], h.r); ok {
			h.key = key
		}
	}
	if h.key == nil {
		return ErrPasswordRequired
	}
	if pval, err := decryptPermsAES256(h.key, h.perms); err == nil {
		h.p = pval
	}
	return nil
}

type noEncryptionHandler struct{}

func (noEncryptionHandler) IsEncrypted() bool { return false }
func (noEncryptionHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Permissions() Permissions {
	return Permissions{Print: true, Modify: true, Copy: true, ModifyAnnotations: true, FillForms: true, ExtractAccessible: true, Assemble: true, PrintHighQuality: true}
}
func (noEncryptionHandler) EncryptMetadata() bool { return false }

// NoopHandler returns the handler used for unencrypted documents.
func NoopHandler() Handler { return noEncryptionHandler{} }

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

// hashR6 is the iterated hash of revisions 5 and 6. Revision 5 stops after
// the initial SHA-256.
func hashR6(pwd, salt, udata []byte, r int) []byte {
	if len(pwd) > 127 {
		pwd = pwd[:127]
	}
	sum := sha256.Sum256(concat(pwd, salt, udata))
	k := sum[:]
	if r < 6 {
		return k
	}
	for i := 0; ; i++ {
		k1 := bytes.Repeat(concat(pwd, k, udata), 64)
		block, err := aes.NewCipher(k[:16])
		if err != nil {
			return k[:32]
		}
		e := make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)
		mod := 0
		for _, c := range e[:16] {
			mod += int(c)
		}
		switch mod % 3 {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		default:
			s := sha512.Sum512(e)
			k = s[:]
		}
		if i >= 63 && int(e[len(e)-1]) <= i+1-32 {
			break
		}
	}
	return k[:32]
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// deriveKey computes the file key of revisions 2 to 4.
func deriveKey(pwd, owner []byte, pVal int32, fileID []byte, keyLenBytes int, r int, encryptMeta bool) []byte {
	if r == 2 || keyLenBytes <= 0 {
		keyLenBytes = 5
	}
	if keyLenBytes > 16 {
		keyLenBytes = 16
	}
	data := make([]byte, 0, 32+len(owner)+8+len(fileID))
	data = append(data, padPassword(pwd)...)
	data = append(data, owner...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(pVal))
	data = append(data, pBuf[:]...)
	data = append(data, fileID...)
	if r >= 4 && !encryptMeta {
		data = append(data, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	sum := md5.Sum(data)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLenBytes])
			key = sum[:]
		}
	}
	return append([]byte(nil), key[:keyLenBytes]...)
}

// userEntry computes the expected /U value for a file key.
func userEntry(key, fileID []byte, r int) []byte {
	if r <= 2 {
		return rc4Simple(key, passwordPadding)
	}
	h := md5.Sum(concat(passwordPadding, fileID))
	val := h[:]
	for i := 0; i < 20; i++ {
		tmpKey := make([]byte, len(key))
		for j := range key {
			tmpKey[j] = key[j] ^ byte(i)
		}
		val = rc4Simple(tmpKey, val)
	}
	return val
}

func checkUserPassword(key []byte, entry []byte, fileID []byte, r int) bool {
	want := userEntry(key, fileID, r)
	n := 32
	if r >= 3 {
		n = 16
	}
	return len(entry) >= n && bytes.Equal(want[:n], entry[:n])
}

// deriveAES256 validates a password against a U or O entry (hash, validation
// salt, key salt) and unwraps the file key from UE or OE.
func deriveAES256(pwd, entry, wrapped, udata []byte, r int) ([]byte, bool) {
	if len(entry) < 48 || len(wrapped) < 32 {
		return nil, false
	}
	if !bytes.Equal(hashR6(pwd, entry[32:40], udata, r), entry[:32]) {
		return nil, false
	}
	block, err := aes.NewCipher(hashR6(pwd, entry[40:48], udata, r))
	if err != nil {
		return nil, false
	}
	fileKey := make([]byte, 32)
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(fileKey, wrapped[:32])
	return fileKey, true
}

func parseCryptFilters(dict *raw.DictObj, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	cfObj, ok := dict.Get("CF")
	if !ok {
		return out, nil
	}
	cfDict, ok := cfObj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("CF must be a dictionary")
	}
	for name, obj := range cfDict.KV {
		entry, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, errors.New("crypt filter entry must be a dictionary")
		}
		algo := base
		switch cfm := entry.Name("CFM"); cfm {
		case "":
		case "V2":
			algo = algoRC4
		case "AESV2", "AESV3":
			algo = algoAES
		case "None":
			algo = algoNone
		default:
			return nil, fmt.Errorf("unsupported crypt filter method %s", cfm)
		}
		out[name] = algo
	}
	return out, nil
}

func resolveCryptFilter(dict *raw.DictObj, key string, filters map[string]cryptAlgo) (cryptAlgo, error) {
	name := dict.Name(key)
	if name == "" || name == "Identity" {
		return algoNone, nil
	}
	if algo, ok := filters[name]; ok {
		return algo, nil
	}
	return algoUnset, fmt.Errorf("crypt filter %s not defined", name)
}

func objectKey(fileKey []byte, objNum, gen int, r int, useAES bool) []byte {
	if r >= 5 {
		return fileKey
	}
	key := append([]byte{}, fileKey...)
	key = append(key, byte(objNum), byte(objNum>>8), byte(objNum>>16), byte(gen), byte(gen>>8))
	if useAES {
		key = append(key, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	hashLen := len(fileKey) + 5
	if hashLen > 16 {
		hashLen = 16
	}
	hash := md5.Sum(key)
	return hash[:hashLen]
}

func rc4Simple(key []byte, data []byte) []byte {
	out, _ := rc4Crypt(key, data)
	return out
}

func rc4Crypt(key []byte, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesDecrypt reverses AES-CBC with a leading IV and PKCS#5 padding.
func aesDecrypt(key []byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aes.BlockSize {
		return nil, errors.New("aes ciphertext too short")
	}
	iv := data[:aes.BlockSize]
	ct := data[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("aes ciphertext not multiple of blocksize")
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

func decryptPermsAES256(key []byte, perms []byte) (int32, error) {
	if len(perms) < 16 {
		return 0, errors.New("perms length must be 16")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, err
	}
	out := make([]byte, 16)
	block.Decrypt(out, perms[:16])
	if !bytes.Equal(out[9:12], []byte("adb")) {
		return 0, errors.New("invalid perms signature")
	}
	return int32(binary.LittleEndian.Uint32(out[0:4])), nil
}

func stringBytes(dict *raw.DictObj, key string) []byte {
	if v, ok := dict.Get(key); ok {
		if s, ok := v.(raw.StringObj); ok {
			return s.Value()
		}
	}
	return nil
}
