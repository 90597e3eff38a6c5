// Package otp expõe os endpoints HTTP de emissão, verificação e consulta de
// desafios OTP. A regra fica em otp/application; aqui só há tradução
// JSON <-> serviço.
package otp
