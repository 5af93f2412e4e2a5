package vnpay

import (
	"fmt"

	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
)

// ResponseCode is a vnp_ResponseCode value.
type ResponseCode string

const (
	CodeSuccess             ResponseCode = "00"
	CodeSuspectedFraud      ResponseCode = "07"
	CodeNoInternetBanking   ResponseCode = "09"
	CodeAuthRetries         ResponseCode = "10"
	CodeExpired             ResponseCode = "11"
	CodeAccountLocked       ResponseCode = "12"
	CodeWrongOTP            ResponseCode = "13"
	CodeCancelled           ResponseCode = "24"
	CodeInsufficientBalance ResponseCode = "51"
	CodeDailyLimitExceeded  ResponseCode = "65"
	CodeBankMaintenance     ResponseCode = "75"
	CodePasswordRetries     ResponseCode = "79"
	CodeOther               ResponseCode = "99"
)

var responseMessages = map[ResponseCode]string{
	CodeSuccess:             "Giao dịch thành công",
	CodeSuspectedFraud:      "Trừ tiền thành công. Giao dịch bị nghi ngờ (liên quan tới lừa đảo)",
	CodeNoInternetBanking:   "Thẻ/Tài khoản chưa đăng ký InternetBanking",
	CodeAuthRetries:         "Xác thực thông tin thẻ/tài khoản không đúng quá 3 lần",
	CodeExpired:             "Đã hết hạn chờ thanh toán. Vui lòng thực hiện lại giao dịch",
	CodeAccountLocked:       "Thẻ/Tài khoản bị khóa",
	CodeWrongOTP:            "Nhập sai mật khẩu xác thực giao dịch (OTP)",
	CodeCancelled:           "Khách hàng hủy giao dịch",
	CodeInsufficientBalance: "Tài khoản không đủ số dư để thực hiện giao dịch",
	CodeDailyLimitExceeded:  "Tài khoản đã vượt quá hạn mức giao dịch trong ngày",
	CodeBankMaintenance:     "Ngân hàng thanh toán đang bảo trì",
	CodePasswordRetries:     "Nhập sai mật khẩu thanh toán quá số lần quy định",
	CodeOther:               "Lỗi không xác định",
}

// Describe classifies a response code. Codes outside the table come back
// with Known false and a message naming the code.
func Describe(code string) paymentdomain.GatewayStatus {
	msg, ok := responseMessages[ResponseCode(code)]
	if !ok {
		return paymentdomain.GatewayStatus{
			Code:    code,
			Message: fmt.Sprintf("Mã phản hồi không xác định: %q", code),
		}
	}
	return paymentdomain.GatewayStatus{
		Code:    code,
		Message: msg,
		Known:   true,
		Success: ResponseCode(code) == CodeSuccess,
	}
}
